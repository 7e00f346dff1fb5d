// Package app contains the notification dispatcher and its ports.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
)

// Sender delivers one price-update notification to an outside channel.
type Sender interface {
	Send(ctx context.Context, update domain.PriceUpdate) error
}

// RateLimitedError signals the channel asked us to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("notification channel rate limited, retry after %s", e.RetryAfter)
}
