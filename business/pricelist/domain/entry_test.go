package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/autobot-tf/pricewatch/internal/currency"
)

func TestKeyPrices_Entry(t *testing.T) {
	key := KeyPrices{
		Buy:  currency.NewFromFloat(0, 66.55),
		Sell: currency.NewFromFloat(0, 67.11),
		Time: 1700000000,
	}

	entry := key.Entry("Mann Co. Supply Crate Key")
	assert.Equal(t, KeySKU, entry.SKU)
	assert.Equal(t, "Mann Co. Supply Crate Key", entry.Name)
	assert.Equal(t, SourceBackpackTF, entry.Source)
	assert.Equal(t, int64(1700000000), entry.Time)
	assert.True(t, entry.Sell.Metal.Equal(decimal.NewFromFloat(67.11)))

	assert.True(t, key.ConversionRate().Equal(decimal.NewFromFloat(67.11)))
}

func TestItem_NormalizedSides(t *testing.T) {
	buy := currency.NewFromFloat(1, 2)
	item := Item{SKU: "205;6", Buy: &buy}

	assert.Equal(t, buy, item.NormalizedBuy())
	assert.True(t, item.NormalizedSell().IsZero(), "nil side normalizes to zero")
}

func TestEntry_Clone(t *testing.T) {
	e := &Entry{SKU: "205;6", Buy: currency.NewFromFloat(0, 1)}
	c := e.Clone()
	c.Buy = currency.NewFromFloat(0, 9)
	assert.True(t, e.Buy.Metal.Equal(decimal.NewFromInt(1)), "clone is independent")
}
