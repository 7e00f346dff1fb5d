package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSKU(t *testing.T) {
	tests := []struct {
		in   string
		want SKU
	}{
		{"5021;6", SKU{Defindex: 5021, Quality: QualityUnique}},
		{"205;11;australium", SKU{Defindex: 205, Quality: QualityStrange, Australium: true}},
		{"30469;5;u108", SKU{Defindex: 30469, Quality: QualityUnusual, Effect: 108}},
		{"205;6;uncraftable;kt-3", SKU{Defindex: 205, Quality: QualityUnique, Uncraftable: true, Killstreak: 3}},
		{"15141;15;w2;pk306", SKU{Defindex: 15141, Quality: QualityDecorated, Wear: 2, PaintKit: 306, hasPaintKit: true}},
		{"5734;6;td-205", SKU{Defindex: 5734, Quality: QualityUnique, TargetDef: 205, hasTargetDef: true}},
		{"5022;6;c1", SKU{Defindex: 5022, Quality: QualityUnique, CrateSeries: 1, hasCrate: true}},
		{"263;6;n100", SKU{Defindex: 263, Quality: QualityUnique, CraftNumber: 100, hasCraftNum: true}},
		{"263;6;p3100495", SKU{Defindex: 263, Quality: QualityUnique, Paint: 3100495, hasPaintColor: true}},
		{"202;11;strange", SKU{Defindex: 202, Quality: QualityStrange, StrangeBonus: true}},
		{"205;6;festive", SKU{Defindex: 205, Quality: QualityUnique, Festivized: true}},
	}
	for _, tt := range tests {
		got, err := ParseSKU(tt.in)
		require.NoError(t, err, "sku %s", tt.in)
		assert.Equal(t, tt.want, got, "sku %s", tt.in)
	}
}

func TestParseSKU_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"5021",
		"abc;6",
		"5021;x",
		"-1;6",
		"5021;-2",
		"5021;6;wat",
	} {
		_, err := ParseSKU(in)
		assert.Error(t, err, "sku %q", in)
	}
}

func TestValidSKU(t *testing.T) {
	assert.True(t, ValidSKU(KeySKU))
	assert.False(t, ValidSKU("definitely not"))
}

func TestQualityName(t *testing.T) {
	assert.Equal(t, "Unique", QualityName(QualityUnique))
	assert.Equal(t, "Collector's", QualityName(QualityCollector))
	assert.Equal(t, "", QualityName(42))
}
