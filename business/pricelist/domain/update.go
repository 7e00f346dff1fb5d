package domain

import (
	"github.com/shopspring/decimal"

	"github.com/autobot-tf/pricewatch/internal/currency"
)

// PriceUpdate is the event emitted for every accepted price change or
// new-item registration. Old prices and deltas are nil for new items.
type PriceUpdate struct {
	SKU  string
	Name string
	Time int64

	Buy  currency.Currencies
	Sell currency.Currencies

	OldBuy  *currency.Currencies
	OldSell *currency.Currencies

	IsNew bool

	// Rounded scalar deltas in scrap, computed against the entry's prior
	// stored value.
	BuyDelta  *decimal.Decimal
	SellDelta *decimal.Decimal
}
