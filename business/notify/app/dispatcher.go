package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/ratelimit"
)

// Dispatcher consumes price-change events and delivers them through a Sender
// at a bounded rate. It owns all of its queue and backoff state.
//
// The queue coalesces per SKU: while an update for a SKU is waiting, a newer
// update for the same SKU replaces it in place, keeping its queue position.
// Only the latest price for an item is worth announcing.
type Dispatcher struct {
	log     logger.LoggerInterface
	sender  Sender
	limiter *ratelimit.Limiter

	mu      sync.Mutex
	pending map[string]domain.PriceUpdate
	order   []string

	wake     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewDispatcher creates a stopped dispatcher sending at most
// requestsPerMinute notifications per minute.
func NewDispatcher(sender Sender, requestsPerMinute int, log logger.LoggerInterface) *Dispatcher {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &Dispatcher{
		log:     log,
		sender:  sender,
		limiter: ratelimit.New(requestsPerMinute),
		pending: make(map[string]domain.PriceUpdate),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// OnPriceUpdate enqueues an update, replacing any queued predecessor for the
// same SKU. Implements the pricelist Listener port.
func (d *Dispatcher) OnPriceUpdate(ctx context.Context, update domain.PriceUpdate) {
	d.mu.Lock()
	if _, queued := d.pending[update.SKU]; !queued {
		d.order = append(d.order, update.SKU)
	}
	d.pending[update.SKU] = update
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of SKUs waiting for delivery.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Start runs the drain loop in a background goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop terminates the drain loop. Idempotent; waits for the loop to exit.
// Queued updates that were not yet delivered are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)

	for {
		update, ok := d.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-d.wake:
				continue
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		d.deliver(ctx, update)
	}
}

func (d *Dispatcher) dequeue() (domain.PriceUpdate, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.order) == 0 {
		return domain.PriceUpdate{}, false
	}
	sku := d.order[0]
	d.order = d.order[1:]
	update := d.pending[sku]
	delete(d.pending, sku)
	return update, true
}

// requeueFront puts an update back at the head of the queue unless a newer
// update for the SKU arrived while it was out.
func (d *Dispatcher) requeueFront(update domain.PriceUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, queued := d.pending[update.SKU]; queued {
		return
	}
	d.order = append([]string{update.SKU}, d.order...)
	d.pending[update.SKU] = update
}

func (d *Dispatcher) deliver(ctx context.Context, update domain.PriceUpdate) {
	err := d.sender.Send(ctx, update)
	if err == nil {
		return
	}

	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		wait := rateLimited.RetryAfter
		if wait <= 0 {
			wait = 5 * time.Second
		}
		d.log.Warn(ctx, "notification rate limited, backing off",
			"sku", update.SKU, "retry_after", wait)
		d.requeueFront(update)

		select {
		case <-ctx.Done():
		case <-d.stopCh:
		case <-time.After(wait):
		}
		return
	}

	d.log.Error(ctx, "notification delivery failed", "sku", update.SKU, "error", err)
}
