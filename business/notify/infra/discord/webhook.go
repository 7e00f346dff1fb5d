// Package discord posts price-change notifications to Discord webhooks.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	notifyapp "github.com/autobot-tf/pricewatch/business/notify/app"
	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/currency"
	"github.com/autobot-tf/pricewatch/internal/httpclient"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

const (
	colorUp   = 0x2e7d32
	colorDown = 0xc62828
	colorNew  = 0x1565c0

	itemPageBase = "https://autobot.tf/items/"
)

// Config holds the webhook targets.
type Config struct {
	// PriceWebhookURLs receive every accepted price change.
	PriceWebhookURLs []string
	// KeyWebhookURLs additionally receive key price changes, with a role
	// mention when KeyMentionRoleID is set.
	KeyWebhookURLs   []string
	KeyMentionRoleID string
}

// Webhook delivers price updates to Discord. All posts go through a circuit
// breaker so a dead Discord endpoint sheds load instead of queueing forever.
type Webhook struct {
	cfg     Config
	http    httpclient.Client
	log     logger.LoggerInterface
	breaker *gobreaker.CircuitBreaker[*httpclient.Response]
}

// NewWebhook creates the sender.
func NewWebhook(cfg Config, log logger.LoggerInterface) (*Webhook, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("discord"),
		httpclient.WithRequestTimeout(15*time.Second),
	)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker[*httpclient.Response](gobreaker.Settings{
		Name:        "discord-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Webhook{
		cfg:     cfg,
		http:    client,
		log:     log,
		breaker: breaker,
	}, nil
}

// Send posts the update to every configured target. Implements the
// dispatcher's Sender port.
func (w *Webhook) Send(ctx context.Context, update domain.PriceUpdate) error {
	payload := w.buildPayload(update, "")

	for _, url := range w.cfg.PriceWebhookURLs {
		if err := w.post(ctx, url, payload); err != nil {
			return err
		}
	}

	if update.SKU == domain.KeySKU && len(w.cfg.KeyWebhookURLs) > 0 {
		content := ""
		if w.cfg.KeyMentionRoleID != "" {
			content = fmt.Sprintf("<@&%s> The key price changed!", w.cfg.KeyMentionRoleID)
		}
		keyPayload := w.buildPayload(update, content)
		for _, url := range w.cfg.KeyWebhookURLs {
			if err := w.post(ctx, url, keyPayload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, url string, payload webhookPayload) error {
	resp, err := w.breaker.Execute(func() (*httpclient.Response, error) {
		return w.http.NewRequest().
			SetHeader("X-Delivery-ID", uuid.NewString()).
			SetBody(payload).
			Post(ctx, url)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return apperror.Wrap(err, apperror.CodeCircuitOpen, "discord webhook")
		}
		return apperror.Wrap(err, apperror.CodeWebhookSendFailed, "discord webhook")
	}

	if resp.StatusCode == 429 {
		return &notifyapp.RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeWebhookSendFailed,
			apperror.WithStatusCode(resp.StatusCode),
			apperror.WithContext(fmt.Sprintf("discord returned %d: %s", resp.StatusCode, resp.String())))
	}
	return nil
}

func retryAfter(resp *httpclient.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func (w *Webhook) buildPayload(update domain.PriceUpdate, content string) webhookPayload {
	title := update.Name
	if title == "" {
		title = update.SKU
	}

	var lines []string
	color := colorNew
	if update.IsNew {
		title = "🆕 " + title
		lines = append(lines,
			"Buy: "+update.Buy.String(),
			"Sell: "+update.Sell.String(),
		)
	} else {
		lines = append(lines,
			priceLine("Buy", update.OldBuy, update.Buy, update.BuyDelta),
			priceLine("Sell", update.OldSell, update.Sell, update.SellDelta),
		)
		color = deltaColor(update.SellDelta, update.BuyDelta)
	}

	var ts string
	if update.Time > 0 {
		ts = time.Unix(update.Time, 0).UTC().Format(time.RFC3339)
	}

	return webhookPayload{
		Content: content,
		Embeds: []embed{{
			Title:       title,
			URL:         itemPageBase + update.SKU,
			Description: strings.Join(lines, "\n"),
			Color:       color,
			Timestamp:   ts,
			Footer:      &embedFooter{Text: update.SKU},
		}},
	}
}

func priceLine(side string, old *currency.Currencies, newer currency.Currencies, delta *decimal.Decimal) string {
	arrow := ""
	if delta != nil {
		switch delta.Sign() {
		case 1:
			arrow = " 📈"
		case -1:
			arrow = " 📉"
		}
	}
	if old == nil {
		return fmt.Sprintf("%s: %s%s", side, newer.String(), arrow)
	}
	return fmt.Sprintf("%s: %s → %s%s", side, old.String(), newer.String(), arrow)
}

// deltaColor colors the embed by the sell delta, falling back to the buy
// delta when the sell side did not move.
func deltaColor(sellDelta, buyDelta *decimal.Decimal) int {
	for _, d := range []*decimal.Decimal{sellDelta, buyDelta} {
		if d == nil {
			continue
		}
		switch d.Sign() {
		case 1:
			return colorUp
		case -1:
			return colorDown
		}
	}
	return colorNew
}
