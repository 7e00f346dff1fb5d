package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notifyapp "github.com/autobot-tf/pricewatch/business/notify/app"
	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/currency"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(nopWriter{}, logger.LevelError, "test", nil)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newWebhook(t *testing.T, cfg Config) *Webhook {
	t.Helper()
	w, err := NewWebhook(cfg, testLogger())
	require.NoError(t, err)
	return w
}

func changedUpdate() domain.PriceUpdate {
	oldBuy := currency.NewFromFloat(1, 0)
	oldSell := currency.NewFromFloat(1, 2)
	buyDelta := decimal.NewFromInt(18)
	sellDelta := decimal.NewFromInt(-9)
	return domain.PriceUpdate{
		SKU:       "30469;1",
		Name:      "Lucky Cat Hat",
		Time:      1767366245,
		Buy:       currency.NewFromFloat(1, 2),
		Sell:      currency.NewFromFloat(1, 1.5),
		OldBuy:    &oldBuy,
		OldSell:   &oldSell,
		BuyDelta:  &buyDelta,
		SellDelta: &sellDelta,
	}
}

func TestWebhook_BuildPayload_Changed(t *testing.T) {
	w := newWebhook(t, Config{})

	payload := w.buildPayload(changedUpdate(), "")

	require.Len(t, payload.Embeds, 1)
	e := payload.Embeds[0]
	assert.Equal(t, "Lucky Cat Hat", e.Title)
	assert.Equal(t, itemPageBase+"30469;1", e.URL)
	assert.Contains(t, e.Description, "Buy: 1 key → 1 key, 2 ref 📈")
	assert.Contains(t, e.Description, "Sell: 1 key, 2 ref → 1 key, 1.5 ref 📉")
	assert.Equal(t, colorDown, e.Color, "sell delta wins the color")
	assert.Equal(t, "2026-01-02T15:04:05Z", e.Timestamp)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "30469;1", e.Footer.Text)
}

func TestWebhook_BuildPayload_NewItem(t *testing.T) {
	w := newWebhook(t, Config{})

	payload := w.buildPayload(domain.PriceUpdate{
		SKU:   "160;3",
		Name:  "Vintage Lugermorph",
		Buy:   currency.NewFromFloat(0, 5),
		Sell:  currency.NewFromFloat(0, 6),
		IsNew: true,
	}, "")

	e := payload.Embeds[0]
	assert.Equal(t, "🆕 Vintage Lugermorph", e.Title)
	assert.Contains(t, e.Description, "Buy: 5 ref")
	assert.Contains(t, e.Description, "Sell: 6 ref")
	assert.Equal(t, colorNew, e.Color)
	assert.Empty(t, e.Timestamp)
}

func TestWebhook_BuildPayload_FallsBackToSKU(t *testing.T) {
	w := newWebhook(t, Config{})
	payload := w.buildPayload(domain.PriceUpdate{SKU: "999;6", IsNew: true}, "")
	assert.Equal(t, "🆕 999;6", payload.Embeds[0].Title)
}

func TestWebhook_Send(t *testing.T) {
	var calls atomic.Int64
	var lastPayload webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NotEmpty(t, r.Header.Get("X-Delivery-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPayload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := newWebhook(t, Config{PriceWebhookURLs: []string{server.URL}})

	require.NoError(t, w.Send(context.Background(), changedUpdate()))
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, lastPayload.Content)
}

func TestWebhook_Send_KeyUpdateMentionsRole(t *testing.T) {
	var priceCalls, keyCalls atomic.Int64
	var keyContent atomic.Value

	priceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		priceCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer priceServer.Close()

	keyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyCalls.Add(1)
		var payload webhookPayload
		json.NewDecoder(r.Body).Decode(&payload)
		keyContent.Store(payload.Content)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer keyServer.Close()

	w := newWebhook(t, Config{
		PriceWebhookURLs: []string{priceServer.URL},
		KeyWebhookURLs:   []string{keyServer.URL},
		KeyMentionRoleID: "12345",
	})

	up := changedUpdate()
	up.SKU = domain.KeySKU
	require.NoError(t, w.Send(context.Background(), up))

	assert.Equal(t, int64(1), priceCalls.Load())
	assert.Equal(t, int64(1), keyCalls.Load())
	assert.Equal(t, "<@&12345> The key price changed!", keyContent.Load())
}

func TestWebhook_Send_NonKeySkipsKeyTargets(t *testing.T) {
	var keyCalls atomic.Int64
	keyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer keyServer.Close()

	w := newWebhook(t, Config{KeyWebhookURLs: []string{keyServer.URL}})

	require.NoError(t, w.Send(context.Background(), changedUpdate()))
	assert.Equal(t, int64(0), keyCalls.Load())
}

func TestWebhook_Send_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2.5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	w := newWebhook(t, Config{PriceWebhookURLs: []string{server.URL}})

	err := w.Send(context.Background(), changedUpdate())
	var rateLimited *notifyapp.RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 2500*time.Millisecond, rateLimited.RetryAfter)
}

func TestWebhook_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	w := newWebhook(t, Config{PriceWebhookURLs: []string{server.URL}})

	err := w.Send(context.Background(), changedUpdate())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeWebhookSendFailed, apperror.GetCode(err))
}

func TestWebhook_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close() // a dead endpoint makes every post a transport error

	w := newWebhook(t, Config{PriceWebhookURLs: []string{url}})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := w.Send(ctx, changedUpdate())
		require.Error(t, err)
	}

	err := w.Send(ctx, changedUpdate())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
}
