package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

// MonitorConfig tunes the feed health check loop.
type MonitorConfig struct {
	// Interval between health-check ticks.
	Interval time.Duration
	// IdleThreshold is the number of consecutive idle windows that triggers
	// a reconciliation fetch.
	IdleThreshold int
	// Cooldown suppresses re-triggering after a successful reconciliation.
	Cooldown time.Duration
}

// Monitor is the feed staleness detector. Each tick it compares the store's
// received counter against the previous tick; enough consecutive idle windows
// trigger a reconciliation fetch and a stream reconnect check. It assumes
// silence means the stream degraded, not that prices stopped changing.
type Monitor struct {
	cfg    MonitorConfig
	store  *Store
	pricer Pricer
	log    logger.LoggerInterface

	baseline    int64
	idleWindows int
	lastSuccess time.Time

	inFlight atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(cfg MonitorConfig, store *Store, pricer Pricer, log logger.LoggerInterface) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 3
	}
	return &Monitor{
		cfg:    cfg,
		store:  store,
		pricer: pricer,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the health-check loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.baseline = m.store.ReceivedCount()
	go m.run(ctx)
}

// Stop terminates the loop. Idempotent; waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	received := m.store.ReceivedCount()
	window := received - m.baseline
	m.baseline = received

	if window > 0 {
		m.idleWindows = 0
		return
	}

	m.idleWindows++
	m.log.Warn(ctx, "no price updates in window",
		"idle_windows", m.idleWindows, "threshold", m.cfg.IdleThreshold)

	if m.idleWindows < m.cfg.IdleThreshold {
		return
	}
	if m.inFlight.Load() {
		return
	}
	if m.cfg.Cooldown > 0 && !m.lastSuccess.IsZero() && time.Since(m.lastSuccess) < m.cfg.Cooldown {
		return
	}

	m.recover(ctx)
}

// recover re-fetches and merges the snapshot, then makes sure the stream is
// up. Runs inline on the tick goroutine; the in-flight flag keeps concurrent
// triggers out.
func (m *Monitor) recover(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.inFlight.Store(false)

	m.log.Warn(ctx, "feed idle, starting reconciliation", "key_sku", domain.KeySKU)

	if err := m.store.Reconcile(ctx); err != nil {
		m.log.Error(ctx, "reconciliation failed", "error", err)
		return
	}

	if !m.pricer.IsConnected() && !m.pricer.IsConnecting() {
		m.log.Warn(ctx, "stream down after reconciliation, reconnecting")
		if err := m.pricer.Connect(ctx); err != nil {
			m.log.Error(ctx, "stream reconnect failed", "error", err)
			return
		}
	}

	m.lastSuccess = time.Now()
	m.idleWindows = 0
}
