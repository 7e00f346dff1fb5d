package pricestf

import (
	"context"
	"time"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/apm"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

// Config tunes the feed client.
type Config struct {
	APIURL       string
	WebSocketURL string

	PageLimit           int
	PageDelay           time.Duration
	MaxSnapshotAttempts int
	SnapshotBackoff     time.Duration
	ServerErrorDelay    time.Duration

	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Pricer combines the REST client and the socket manager into the feed
// client port the pricelist store consumes.
type Pricer struct {
	cfg    Config
	api    *APIClient
	socket *SocketManager
	log    logger.LoggerInterface
	tracer apm.Tracer
}

// NewPricer builds the full feed client.
func NewPricer(cfg Config, log logger.LoggerInterface) (*Pricer, error) {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 200 * time.Millisecond
	}
	if cfg.MaxSnapshotAttempts <= 0 {
		cfg.MaxSnapshotAttempts = 5
	}
	if cfg.SnapshotBackoff <= 0 {
		cfg.SnapshotBackoff = time.Second
	}
	if cfg.ServerErrorDelay <= 0 {
		cfg.ServerErrorDelay = 10 * time.Second
	}

	api, err := NewAPIClient(cfg.APIURL, cfg.ServerErrorDelay, log)
	if err != nil {
		return nil, err
	}
	socket, err := NewSocketManager(SocketConfig{
		URL:            cfg.WebSocketURL,
		MaxReconnects:  cfg.MaxReconnects,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}, api, log)
	if err != nil {
		return nil, err
	}

	return &Pricer{
		cfg:    cfg,
		api:    api,
		socket: socket,
		log:    log,
		tracer: apm.NewTracer("prices_tf_pricer"),
	}, nil
}

// GetPrice fetches the current price of one SKU.
func (p *Pricer) GetPrice(ctx context.Context, sku string) (domain.Item, error) {
	record, err := p.api.GetPrice(ctx, sku)
	if err != nil {
		return domain.Item{}, err
	}
	return record.toItem(), nil
}

// GetPricelist fetches the full paginated snapshot. A page failure restarts
// the whole fetch from page 1, bounded by MaxSnapshotAttempts with
// exponential backoff between attempts.
func (p *Pricer) GetPricelist(ctx context.Context) ([]domain.Item, error) {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "pricer.get_pricelist")
	defer span.End()

	backoff := p.cfg.SnapshotBackoff
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxSnapshotAttempts; attempt++ {
		items, err := p.fetchAllPages(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		p.log.Warn(ctx, "snapshot fetch failed, restarting from page 1",
			"attempt", attempt, "max_attempts", p.cfg.MaxSnapshotAttempts, "error", err)

		if attempt == p.cfg.MaxSnapshotAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	err := apperror.Wrap(lastErr, apperror.CodePricerFetchFailed, "snapshot attempts exhausted")
	span.NoticeError(err)
	return nil, err
}

// fetchAllPages walks the snapshot sequentially. The page count is re-read
// from every response since it can change mid-fetch, and consecutive page
// requests are spaced at least PageDelay apart, measured from request start.
func (p *Pricer) fetchAllPages(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item

	page := 1
	totalPages := 1
	for page <= totalPages {
		start := time.Now()

		resp, err := p.api.GetPricelistPage(ctx, page, p.cfg.PageLimit)
		if err != nil {
			return nil, err
		}
		totalPages = resp.Meta.TotalPages
		for _, record := range resp.Items {
			items = append(items, record.toItem())
		}

		page++
		if page > totalPages {
			break
		}
		if wait := p.cfg.PageDelay - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return items, nil
}

// RequestCheck asks the upstream to re-price a SKU out of band.
func (p *Pricer) RequestCheck(ctx context.Context, sku string) (bool, error) {
	return p.api.RequestCheck(ctx, sku)
}

// OnPriceUpdate registers the streamed price-change handler.
func (p *Pricer) OnPriceUpdate(handler func(ctx context.Context, item domain.Item)) {
	p.socket.OnPriceUpdate(handler)
}

// Connect opens the streaming connection.
func (p *Pricer) Connect(ctx context.Context) error {
	return p.socket.Connect(ctx)
}

// Shutdown closes the streaming connection. Idempotent.
func (p *Pricer) Shutdown(ctx context.Context) error {
	return p.socket.Shutdown(ctx)
}

func (p *Pricer) IsConnected() bool  { return p.socket.IsConnected() }
func (p *Pricer) IsConnecting() bool { return p.socket.IsConnecting() }
