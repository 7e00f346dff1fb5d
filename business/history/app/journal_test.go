package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/currency"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

type fakeRecorder struct {
	mu        sync.Mutex
	rows      []Row
	recordErr error
	lastLimit int
	closed    bool
}

func (f *fakeRecorder) Record(ctx context.Context, row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeRecorder) Recent(ctx context.Context, sku string, limit int) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.rows, nil
}

func (f *fakeRecorder) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRecorder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testLogger() logger.LoggerInterface {
	return logger.New(nopWriter{}, logger.LevelError, "test", nil)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestJournal_OnPriceUpdate(t *testing.T) {
	recorder := &fakeRecorder{}
	j := NewJournal(recorder, 0, testLogger())
	delta := decimal.NewFromInt(-9)

	j.OnPriceUpdate(context.Background(), domain.PriceUpdate{
		SKU:       "205;6",
		Time:      123,
		Buy:       currency.NewFromFloat(0, 1),
		Sell:      currency.NewFromFloat(0, 2),
		SellDelta: &delta,
	})

	require.Len(t, recorder.rows, 1)
	row := recorder.rows[0]
	assert.Equal(t, "205;6", row.SKU)
	assert.Equal(t, int64(123), row.Time)
	assert.Nil(t, row.BuyDelta)
	require.NotNil(t, row.SellDelta)
	assert.False(t, row.CreatedAt.IsZero())
}

func TestJournal_OnPriceUpdate_WriteFailureIsSwallowed(t *testing.T) {
	recorder := &fakeRecorder{recordErr: errors.New("disk full")}
	j := NewJournal(recorder, 0, testLogger())

	// Must not panic or propagate; history never stalls the price path.
	j.OnPriceUpdate(context.Background(), domain.PriceUpdate{SKU: "205;6"})
}

func TestJournal_Recent_ClampsLimit(t *testing.T) {
	recorder := &fakeRecorder{}
	j := NewJournal(recorder, 0, testLogger())
	ctx := context.Background()

	_, err := j.Recent(ctx, "205;6", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, recorder.lastLimit, "non-positive limit defaults")

	_, err = j.Recent(ctx, "205;6", 9999)
	require.NoError(t, err)
	assert.Equal(t, 100, recorder.lastLimit, "oversized limit defaults")

	_, err = j.Recent(ctx, "205;6", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, recorder.lastLimit)
}

func TestJournal_StopClosesRecorder(t *testing.T) {
	recorder := &fakeRecorder{}
	j := NewJournal(recorder, time.Hour, testLogger())
	j.StartRetention(context.Background())

	require.NoError(t, j.Stop())
	assert.True(t, recorder.closed)
}
