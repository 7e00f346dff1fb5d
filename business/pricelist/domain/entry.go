// Package domain holds the pricelist bounded context's core types.
package domain

import (
	"github.com/shopspring/decimal"

	"github.com/autobot-tf/pricewatch/internal/currency"
)

// KeySKU identifies the Mann Co. Supply Crate Key, the item whose sell price
// defines the key-to-metal exchange rate for valuing every other item.
const KeySKU = "5021;6"

// SourceBackpackTF tags entries originating from the backpack.tf price feed.
const SourceBackpackTF = "bptf"

// Entry is one priced item. Buy and Sell are never nil-like: absent upstream
// prices are normalized to zero amounts before an Entry is built.
type Entry struct {
	SKU    string              `json:"sku"`
	Name   string              `json:"name"`
	Source string              `json:"source"`
	Time   int64               `json:"time"`
	Buy    currency.Currencies `json:"buy"`
	Sell   currency.Currencies `json:"sell"`
}

// Clone returns an independent copy.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// KeyPrices is the distinguished key item price, cached apart from the entry
// map. Keys are always zero here: a key's own price is metal only.
type KeyPrices struct {
	Buy  currency.Currencies `json:"buy"`
	Sell currency.Currencies `json:"sell"`
	Time int64               `json:"time"`
}

// ConversionRate is the canonical "1 key = N refined" exchange rate.
func (k KeyPrices) ConversionRate() decimal.Decimal {
	return k.Sell.Metal
}

// Entry renders the key price as a regular pricelist entry.
func (k KeyPrices) Entry(name string) *Entry {
	return &Entry{
		SKU:    KeySKU,
		Name:   name,
		Source: SourceBackpackTF,
		Time:   k.Time,
		Buy:    k.Buy,
		Sell:   k.Sell,
	}
}

// Item is one raw price record from the feed, snapshot or stream. Nil Buy or
// Sell means the upstream omitted that side; Time zero means no timestamp.
type Item struct {
	SKU  string
	Buy  *currency.Currencies
	Sell *currency.Currencies
	Time int64
}

// NormalizedBuy returns the buy side with nil mapped to the zero amount.
func (i Item) NormalizedBuy() currency.Currencies {
	if i.Buy == nil {
		return currency.Zero()
	}
	return *i.Buy
}

// NormalizedSell returns the sell side with nil mapped to the zero amount.
func (i Item) NormalizedSell() currency.Currencies {
	if i.Sell == nil {
		return currency.Zero()
	}
	return *i.Sell
}
