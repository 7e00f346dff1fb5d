// Package currency implements the two-denomination TF2 currency: keys (whole
// units) and refined metal (fine units on a half-scrap grid). One refined
// equals 9 scrap; scrap values may carry halves, so the smallest representable
// amount is half a scrap (1/18 ref).
package currency

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoConversion is returned by ToValue when an amount carries keys but no
// key-to-metal conversion rate was supplied.
var ErrNoConversion = errors.New("currency: keys present but no key conversion rate given")

var (
	nine     = decimal.NewFromInt(9)
	two      = decimal.NewFromInt(2)
	eighteen = decimal.NewFromInt(18)
)

// Currencies is an amount expressed in keys and refined metal.
type Currencies struct {
	Keys  int64
	Metal decimal.Decimal
}

// New builds an amount from keys and refined metal.
func New(keys int64, metal decimal.Decimal) Currencies {
	return Currencies{Keys: keys, Metal: metal}
}

// NewFromFloat builds an amount from a float refined value, snapped to the
// two-decimal refined representation.
func NewFromFloat(keys int64, metal float64) Currencies {
	return Currencies{Keys: keys, Metal: decimal.NewFromFloat(metal).Round(2)}
}

// Zero is the zero amount.
func Zero() Currencies {
	return Currencies{Keys: 0, Metal: decimal.Zero}
}

// FromHalfScrap converts the feed wire format (whole keys plus metal counted
// in half-scrap) to a Currencies value.
func FromHalfScrap(keys int64, halfScrap int64) Currencies {
	scrap := decimal.NewFromInt(halfScrap).Div(two)
	return Currencies{Keys: keys, Metal: ToRefined(scrap)}
}

// ToRefined converts a scrap amount to refined metal, rounded to two decimals.
func ToRefined(scrap decimal.Decimal) decimal.Decimal {
	return scrap.Div(nine).Round(2)
}

// ToScrap converts refined metal to scrap, snapped to the half-scrap grid.
func ToScrap(refined decimal.Decimal) decimal.Decimal {
	return refined.Mul(eighteen).Round(0).Div(two)
}

// ToValue converts the amount to a single scalar value in scrap. Amounts that
// include keys need the key sell rate (in refined metal) as conversion; the
// key item itself is priced with zero keys and needs none.
func (c Currencies) ToValue(conversion ...decimal.Decimal) (decimal.Decimal, error) {
	value := ToScrap(c.Metal)
	if c.Keys == 0 {
		return value, nil
	}
	if len(conversion) == 0 {
		return decimal.Zero, ErrNoConversion
	}
	keyScrap := ToScrap(conversion[0])
	return value.Add(decimal.NewFromInt(c.Keys).Mul(keyScrap)), nil
}

// FromValue converts a scalar scrap value back to keys and metal using the
// given key rate. With no rate the whole value lands in metal.
func FromValue(value decimal.Decimal, conversion ...decimal.Decimal) Currencies {
	if len(conversion) == 0 || conversion[0].IsZero() {
		return Currencies{Keys: 0, Metal: ToRefined(value)}
	}
	keyScrap := ToScrap(conversion[0])
	keys := value.Div(keyScrap).Truncate(0)
	remainder := value.Sub(keys.Mul(keyScrap))
	return Currencies{Keys: keys.IntPart(), Metal: ToRefined(remainder)}
}

// IsZero reports whether both denominations are zero.
func (c Currencies) IsZero() bool {
	return c.Keys == 0 && c.Metal.IsZero()
}

// Equal reports denomination-wise equality.
func (c Currencies) Equal(other Currencies) bool {
	return c.Keys == other.Keys && c.Metal.Equal(other.Metal)
}

// String renders the amount the way trade listings do, e.g. "2 keys, 5.55 ref".
func (c Currencies) String() string {
	if c.Keys == 0 && c.Metal.IsZero() {
		return "0 keys, 0 ref"
	}
	keyWord := "keys"
	if c.Keys == 1 || c.Keys == -1 {
		keyWord = "key"
	}
	switch {
	case c.Keys != 0 && !c.Metal.IsZero():
		return fmt.Sprintf("%d %s, %s ref", c.Keys, keyWord, c.Metal.String())
	case c.Keys != 0:
		return fmt.Sprintf("%d %s", c.Keys, keyWord)
	default:
		return fmt.Sprintf("%s ref", c.Metal.String())
	}
}

type currenciesJSON struct {
	Keys  int64           `json:"keys"`
	Metal json.RawMessage `json:"metal"`
}

// MarshalJSON emits {"keys": n, "metal": m} with metal as a bare number.
func (c Currencies) MarshalJSON() ([]byte, error) {
	return json.Marshal(currenciesJSON{
		Keys:  c.Keys,
		Metal: json.RawMessage(c.Metal.String()),
	})
}

// UnmarshalJSON accepts metal as either a JSON number or a quoted number.
func (c *Currencies) UnmarshalJSON(data []byte) error {
	var raw currenciesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Keys = raw.Keys
	if len(raw.Metal) == 0 || string(raw.Metal) == "null" {
		c.Metal = decimal.Zero
		return nil
	}
	metal, err := decimal.NewFromString(trimQuotes(string(raw.Metal)))
	if err != nil {
		return fmt.Errorf("currency: bad metal value %s: %w", raw.Metal, err)
	}
	c.Metal = metal
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
