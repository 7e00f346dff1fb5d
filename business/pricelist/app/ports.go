// Package app contains the pricelist store, the feed health monitor and the
// port definitions of the pricelist bounded context.
package app

import (
	"context"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
)

// Pricer abstracts the upstream pricing service: paginated snapshot fetch,
// single-item fetch and the persistent streaming connection.
type Pricer interface {
	// GetPrice fetches the current price of one SKU.
	GetPrice(ctx context.Context, sku string) (domain.Item, error)

	// GetPricelist fetches the full paginated snapshot.
	GetPricelist(ctx context.Context) ([]domain.Item, error)

	// RequestCheck asks the upstream to re-price a SKU out of band.
	RequestCheck(ctx context.Context, sku string) (bool, error)

	// OnPriceUpdate registers the handler invoked once per streamed
	// price-change message. Must be called before Connect.
	OnPriceUpdate(handler func(ctx context.Context, item domain.Item))

	// Connect opens the streaming connection.
	Connect(ctx context.Context) error

	// Shutdown closes the streaming connection. Idempotent.
	Shutdown(ctx context.Context) error

	IsConnected() bool
	IsConnecting() bool
}

// SchemaService resolves item metadata; it is an external collaborator the
// store only reads from.
type SchemaService interface {
	// GetName returns a human-readable name for a SKU, falling back to the
	// SKU string itself when unknown.
	GetName(sku string) string

	// Exists reports whether the SKU is present in the current game schema.
	Exists(sku string) bool
}

// Listener consumes accepted price changes and new-item registrations.
type Listener interface {
	OnPriceUpdate(ctx context.Context, update domain.PriceUpdate)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, update domain.PriceUpdate)

func (f ListenerFunc) OnPriceUpdate(ctx context.Context, update domain.PriceUpdate) {
	f(ctx, update)
}
