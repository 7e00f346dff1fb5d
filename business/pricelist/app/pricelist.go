package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/currency"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

// Store is the single source of truth for current prices. It reconciles
// snapshot loads with streamed updates, computes change deltas for
// notification and exposes read APIs to the presentation layer.
//
// The key item's price is held once, in the key cache; the key's own
// pricelist entry is derived from the cache on read.
type Store struct {
	log    logger.LoggerInterface
	pricer Pricer
	schema SchemaService

	mu      sync.RWMutex
	entries map[string]*domain.Entry
	key     domain.KeyPrices
	keySet  bool

	listenersMu sync.RWMutex
	listeners   []Listener

	initialized atomic.Bool
	refreshing  atomic.Bool
	reconciling atomic.Bool

	received atomic.Int64

	statsMu     sync.Mutex
	statsDay    time.Time
	dayReceived int64
	dayUpdated  int64

	updatesReceived  metric.Int64Counter
	updatesApplied   metric.Int64Counter
	updatesDiscarded metric.Int64Counter
	newItems         metric.Int64Counter
	reconciliations  metric.Int64Counter
}

// DailyStats are the rolling since-midnight feed counters.
type DailyStats struct {
	Received int64     `json:"received"`
	Updated  int64     `json:"updated"`
	Since    time.Time `json:"since"`
}

// NewStore creates an uninitialized store. Call Init before serving reads.
func NewStore(pricer Pricer, schema SchemaService, log logger.LoggerInterface) (*Store, error) {
	s := &Store{
		log:     log,
		pricer:  pricer,
		schema:  schema,
		entries: make(map[string]*domain.Entry),
	}

	meter := otel.GetMeterProvider().Meter("pricelist_store")
	var err error
	if s.updatesReceived, err = meter.Int64Counter("price_updates_received_total",
		metric.WithDescription("Streamed price messages received")); err != nil {
		return nil, err
	}
	if s.updatesApplied, err = meter.Int64Counter("price_updates_applied_total",
		metric.WithDescription("Price changes applied to the store")); err != nil {
		return nil, err
	}
	if s.updatesDiscarded, err = meter.Int64Counter("price_updates_discarded_total",
		metric.WithDescription("Zero-delta updates discarded")); err != nil {
		return nil, err
	}
	if s.newItems, err = meter.Int64Counter("price_new_items_total",
		metric.WithDescription("New item registrations")); err != nil {
		return nil, err
	}
	if s.reconciliations, err = meter.Int64Counter("price_reconciliations_total",
		metric.WithDescription("Reconciliation fetches performed")); err != nil {
		return nil, err
	}
	return s, nil
}

// AddListener registers a consumer of accepted price changes.
func (s *Store) AddListener(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Init runs the startup protocol: key price first, full snapshot (with the
// key spliced in if the snapshot omitted it), bulk load, then stream
// subscription. Any failure aborts startup.
func (s *Store) Init(ctx context.Context) error {
	keyItem, err := s.pricer.GetPrice(ctx, domain.KeySKU)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePricelistInitFailed, "fetch key price")
	}
	s.mu.Lock()
	s.applyKeyLocked(keyItem)
	s.mu.Unlock()

	items, err := s.pricer.GetPricelist(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePricelistInitFailed, "fetch snapshot")
	}
	if !containsSKU(items, domain.KeySKU) {
		items = append(items, keyItem)
	}
	s.SetPricelist(ctx, items)

	s.pricer.OnPriceUpdate(s.HandlePriceChange)
	if err := s.pricer.Connect(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodePricelistInitFailed, "connect stream")
	}

	s.initialized.Store(true)
	s.log.Info(ctx, "pricelist initialized", "entries", s.Len(), "key_rate", s.KeyPrice().String())
	return nil
}

// Initialized reports whether the startup protocol completed.
func (s *Store) Initialized() bool {
	return s.initialized.Load()
}

// SetPricelist bulk-loads a snapshot: every record overwrites or creates its
// entry unconditionally. Records without a SKU are skipped; absent buy/sell
// sides are stored as zero amounts. Key records update the key cache.
func (s *Store) SetPricelist(ctx context.Context, items []domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped int
	for _, item := range items {
		if item.SKU == "" {
			skipped++
			continue
		}
		if item.SKU == domain.KeySKU {
			s.applyKeyLocked(item)
			continue
		}
		s.entries[item.SKU] = &domain.Entry{
			SKU:    item.SKU,
			Name:   s.schema.GetName(item.SKU),
			Source: domain.SourceBackpackTF,
			Time:   item.Time,
			Buy:    item.NormalizedBuy(),
			Sell:   item.NormalizedSell(),
		}
	}

	s.log.Info(ctx, "snapshot loaded", "entries", len(s.entries), "skipped", skipped)
}

// applyKeyLocked rebuilds the key cache from an incoming key record. Only the
// metal component is taken; the timestamp is preserved when absent.
func (s *Store) applyKeyLocked(item domain.Item) {
	t := item.Time
	if t == 0 {
		t = s.key.Time
	}
	s.key = domain.KeyPrices{
		Buy:  currency.New(0, item.NormalizedBuy().Metal),
		Sell: currency.New(0, item.NormalizedSell().Metal),
		Time: t,
	}
	s.keySet = true
}

// HandlePriceChange applies one streamed price-change message.
func (s *Store) HandlePriceChange(ctx context.Context, item domain.Item) {
	// No SKU or no buy side means no usable price, not an update.
	if item.SKU == "" || item.Buy == nil {
		return
	}

	s.received.Add(1)
	s.bumpDaily(1, 0)
	s.updatesReceived.Add(ctx, 1)

	if item.SKU == domain.KeySKU {
		s.handleKeyChange(ctx, item)
		return
	}

	s.mu.Lock()
	conversion := s.key.ConversionRate()
	newBuy := item.NormalizedBuy()
	newSell := item.NormalizedSell()

	existing, exists := s.entries[item.SKU]
	if !exists {
		entry := &domain.Entry{
			SKU:    item.SKU,
			Name:   s.schema.GetName(item.SKU),
			Source: domain.SourceBackpackTF,
			Time:   item.Time,
			Buy:    newBuy,
			Sell:   newSell,
		}
		s.entries[item.SKU] = entry
		update := domain.PriceUpdate{
			SKU:   entry.SKU,
			Name:  entry.Name,
			Time:  entry.Time,
			Buy:   entry.Buy,
			Sell:  entry.Sell,
			IsNew: true,
		}
		s.mu.Unlock()

		s.newItems.Add(ctx, 1)
		s.notify(ctx, update)
		return
	}

	oldBuyVal, err1 := existing.Buy.ToValue(conversion)
	newBuyVal, err2 := newBuy.ToValue(conversion)
	oldSellVal, err3 := existing.Sell.ToValue(conversion)
	newSellVal, err4 := newSell.ToValue(conversion)
	if err := firstError(err1, err2, err3, err4); err != nil {
		s.mu.Unlock()
		s.log.Warn(ctx, "unvaluable price update dropped", "sku", item.SKU, "error", err)
		return
	}

	buyDelta := newBuyVal.Sub(oldBuyVal).Round(0)
	sellDelta := newSellVal.Sub(oldSellVal).Round(0)
	if buyDelta.IsZero() && sellDelta.IsZero() {
		// Feeds re-emit unchanged prices; counters keep the signal, the
		// map and listeners do not.
		s.mu.Unlock()
		s.updatesDiscarded.Add(ctx, 1)
		return
	}

	oldBuy := existing.Buy
	oldSell := existing.Sell
	t := item.Time
	if t == 0 {
		t = existing.Time
	}
	existing.Buy = newBuy
	existing.Sell = newSell
	existing.Time = t

	update := domain.PriceUpdate{
		SKU:       existing.SKU,
		Name:      existing.Name,
		Time:      t,
		Buy:       newBuy,
		Sell:      newSell,
		OldBuy:    &oldBuy,
		OldSell:   &oldSell,
		BuyDelta:  &buyDelta,
		SellDelta: &sellDelta,
	}
	s.mu.Unlock()

	s.bumpDaily(0, 1)
	s.updatesApplied.Add(ctx, 1)
	s.notify(ctx, update)
}

// handleKeyChange rebuilds the key cache from a streamed key update. The
// key's own delta is valued without an exchange rate.
func (s *Store) handleKeyChange(ctx context.Context, item domain.Item) {
	s.mu.Lock()

	newBuy := currency.New(0, item.NormalizedBuy().Metal)
	newSell := currency.New(0, item.NormalizedSell().Metal)

	if !s.keySet {
		s.applyKeyLocked(item)
		update := domain.PriceUpdate{
			SKU:   domain.KeySKU,
			Name:  s.schema.GetName(domain.KeySKU),
			Time:  s.key.Time,
			Buy:   newBuy,
			Sell:  newSell,
			IsNew: true,
		}
		s.mu.Unlock()

		s.newItems.Add(ctx, 1)
		s.notify(ctx, update)
		return
	}

	old := s.key

	// Keys are always zero on both sides here, so no conversion is needed.
	oldBuyVal, _ := old.Buy.ToValue()
	newBuyVal, _ := newBuy.ToValue()
	oldSellVal, _ := old.Sell.ToValue()
	newSellVal, _ := newSell.ToValue()

	buyDelta := newBuyVal.Sub(oldBuyVal).Round(0)
	sellDelta := newSellVal.Sub(oldSellVal).Round(0)
	if buyDelta.IsZero() && sellDelta.IsZero() {
		s.mu.Unlock()
		s.updatesDiscarded.Add(ctx, 1)
		return
	}

	s.applyKeyLocked(item)
	update := domain.PriceUpdate{
		SKU:       domain.KeySKU,
		Name:      s.schema.GetName(domain.KeySKU),
		Time:      s.key.Time,
		Buy:       newBuy,
		Sell:      newSell,
		OldBuy:    &old.Buy,
		OldSell:   &old.Sell,
		BuyDelta:  &buyDelta,
		SellDelta: &sellDelta,
	}
	s.mu.Unlock()

	s.bumpDaily(0, 1)
	s.updatesApplied.Add(ctx, 1, metric.WithAttributes(attribute.Bool("key", true)))
	s.notify(ctx, update)
}

// UpdateMissedPrices merges a freshly fetched snapshot without regressing:
// an entry whose stored timestamp is equal or newer than the incoming record
// is left untouched. Entries absent from the snapshot are never deleted.
// Returns the number of merged records.
func (s *Store) UpdateMissedPrices(ctx context.Context, items []domain.Item) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := 0
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		if item.SKU == domain.KeySKU {
			if s.keySet && s.key.Time >= item.Time {
				continue
			}
			s.applyKeyLocked(item)
			merged++
			continue
		}
		existing, ok := s.entries[item.SKU]
		if ok && existing.Time >= item.Time {
			continue
		}
		if ok {
			existing.Buy = item.NormalizedBuy()
			existing.Sell = item.NormalizedSell()
			existing.Time = item.Time
		} else {
			s.entries[item.SKU] = &domain.Entry{
				SKU:    item.SKU,
				Name:   s.schema.GetName(item.SKU),
				Source: domain.SourceBackpackTF,
				Time:   item.Time,
				Buy:    item.NormalizedBuy(),
				Sell:   item.NormalizedSell(),
			}
		}
		merged++
	}
	return merged
}

// Reconcile re-fetches the full snapshot and merges it non-destructively.
// At most one reconciliation runs at a time, and never alongside Refresh.
func (s *Store) Reconcile(ctx context.Context) error {
	if s.refreshing.Load() {
		return apperror.New(apperror.CodePricelistRefreshing,
			apperror.WithContext("refresh in progress"))
	}
	if !s.reconciling.CompareAndSwap(false, true) {
		return apperror.New(apperror.CodePricelistRefreshing,
			apperror.WithContext("reconciliation already in flight"))
	}
	defer s.reconciling.Store(false)

	items, err := s.pricer.GetPricelist(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePricerFetchFailed, "reconciliation snapshot")
	}
	merged := s.UpdateMissedPrices(ctx, items)
	s.reconciliations.Add(ctx, 1)
	s.log.Info(ctx, "reconciliation merge complete", "fetched", len(items), "merged", merged)
	return nil
}

// Refresh is the destructive reset: re-fetch everything and rebuild the
// entry map from scratch. Reads observe the refreshing flag meanwhile.
func (s *Store) Refresh(ctx context.Context) error {
	if s.reconciling.Load() {
		return apperror.New(apperror.CodePricelistRefreshing,
			apperror.WithContext("reconciliation in progress"))
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return apperror.New(apperror.CodePricelistRefreshing)
	}
	defer s.refreshing.Store(false)

	keyItem, err := s.pricer.GetPrice(ctx, domain.KeySKU)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePricerFetchFailed, "refresh key price")
	}
	items, err := s.pricer.GetPricelist(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePricerFetchFailed, "refresh snapshot")
	}
	if !containsSKU(items, domain.KeySKU) {
		items = append(items, keyItem)
	}

	s.mu.Lock()
	s.entries = make(map[string]*domain.Entry, len(items))
	s.applyKeyLocked(keyItem)
	s.mu.Unlock()

	s.SetPricelist(ctx, items)
	s.log.Info(ctx, "pricelist refreshed", "entries", s.Len())
	return nil
}

// IsRefreshing reports whether a refresh or reconciliation is in flight.
// Bulk reads are unreliable while it returns true.
func (s *Store) IsRefreshing() bool {
	return s.refreshing.Load() || s.reconciling.Load()
}

// GetEntry returns a copy of the entry for a SKU. The key item's entry is
// derived from the key cache.
func (s *Store) GetEntry(sku string) (domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sku == domain.KeySKU {
		if !s.keySet {
			return domain.Entry{}, false
		}
		return *s.key.Entry(s.schema.GetName(domain.KeySKU)), true
	}
	entry, ok := s.entries[sku]
	if !ok {
		return domain.Entry{}, false
	}
	return *entry, true
}

// Entries returns a copy of every entry, the key item included.
func (s *Store) Entries() []domain.Entry {
	return s.GetPricesArray(false)
}

// GetPricesArray returns all entries as plain records, optionally filtered to
// SKUs present in the current game schema.
func (s *Store) GetPricesArray(onlyExist bool) []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entry, 0, len(s.entries)+1)
	if s.keySet {
		out = append(out, *s.key.Entry(s.schema.GetName(domain.KeySKU)))
	}
	for _, entry := range s.entries {
		if onlyExist && !s.schema.Exists(entry.SKU) {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// Len returns the number of entries, the key item included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if s.keySet {
		n++
	}
	return n
}

// KeyPrices returns the key cache and whether it has been populated.
func (s *Store) KeyPrices() (domain.KeyPrices, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, s.keySet
}

// KeyPrice returns the canonical "1 key = N refined" exchange rate.
func (s *Store) KeyPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key.ConversionRate()
}

// ReceivedCount returns the total number of streamed updates received. The
// feed health monitor samples it each tick.
func (s *Store) ReceivedCount() int64 {
	return s.received.Load()
}

// Stats returns the since-midnight received/updated counters.
func (s *Store) Stats() DailyStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.rollDayLocked()
	return DailyStats{Received: s.dayReceived, Updated: s.dayUpdated, Since: s.statsDay}
}

func (s *Store) bumpDaily(received, updated int64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.rollDayLocked()
	s.dayReceived += received
	s.dayUpdated += updated
}

func (s *Store) rollDayLocked() {
	today := time.Now().Truncate(24 * time.Hour)
	if !s.statsDay.Equal(today) {
		s.statsDay = today
		s.dayReceived = 0
		s.dayUpdated = 0
	}
}

func (s *Store) notify(ctx context.Context, update domain.PriceUpdate) {
	s.listenersMu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.OnPriceUpdate(ctx, update)
	}
}

func containsSKU(items []domain.Item, sku string) bool {
	for _, item := range items {
		if item.SKU == sku {
			return true
		}
	}
	return false
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
