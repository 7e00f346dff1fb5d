// Package app implements the price history journal service.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/currency"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

// Row is one journaled price change.
type Row struct {
	SKU       string              `json:"sku"`
	Time      int64               `json:"time"`
	Buy       currency.Currencies `json:"buy"`
	Sell      currency.Currencies `json:"sell"`
	BuyDelta  *decimal.Decimal    `json:"buyDelta,omitempty"`
	SellDelta *decimal.Decimal    `json:"sellDelta,omitempty"`
	IsNew     bool                `json:"isNew"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Recorder is the storage port of the journal.
type Recorder interface {
	Record(ctx context.Context, row Row) error
	Recent(ctx context.Context, sku string, limit int) ([]Row, error)
	Sweep(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Journal persists every accepted price change and serves recent history per
// SKU. Implements the pricelist Listener port.
type Journal struct {
	log       logger.LoggerInterface
	recorder  Recorder
	retention time.Duration

	stopCh chan struct{}
}

// NewJournal creates the journal. retention bounds how long rows are kept;
// zero disables sweeping.
func NewJournal(recorder Recorder, retention time.Duration, log logger.LoggerInterface) *Journal {
	return &Journal{
		log:       log,
		recorder:  recorder,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// OnPriceUpdate journals one accepted change. Write failures are logged, not
// propagated: history is best effort and must never stall the price path.
func (j *Journal) OnPriceUpdate(ctx context.Context, update domain.PriceUpdate) {
	row := Row{
		SKU:       update.SKU,
		Time:      update.Time,
		Buy:       update.Buy,
		Sell:      update.Sell,
		BuyDelta:  update.BuyDelta,
		SellDelta: update.SellDelta,
		IsNew:     update.IsNew,
		CreatedAt: time.Now().UTC(),
	}
	if err := j.recorder.Record(ctx, row); err != nil {
		j.log.Error(ctx, "history write failed", "sku", update.SKU, "error", err)
	}
}

// Recent returns the newest rows for a SKU, newest first.
func (j *Journal) Recent(ctx context.Context, sku string, limit int) ([]Row, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return j.recorder.Recent(ctx, sku, limit)
}

// StartRetention runs the hourly retention sweep until Stop or ctx end.
func (j *Journal) StartRetention(ctx context.Context) {
	if j.retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-j.stopCh:
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-j.retention)
				deleted, err := j.recorder.Sweep(ctx, cutoff)
				if err != nil {
					j.log.Error(ctx, "retention sweep failed", "error", err)
					continue
				}
				if deleted > 0 {
					j.log.Info(ctx, "retention sweep", "deleted", deleted, "cutoff", cutoff)
				}
			}
		}
	}()
}

// Stop halts the retention loop and closes the storage.
func (j *Journal) Stop() error {
	close(j.stopCh)
	return j.recorder.Close()
}
