package product

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// pricePlaces is the number of fractional digits kept for stored amounts.
const pricePlaces = 2

// Bounds on incoming amounts. Rounding or comparing a decimal materializes
// its coefficient at the target exponent, so the exponent range is kept
// small before any arithmetic happens.
const (
	MaxAmountExponent = 32
	maxAmountLength   = 64
)

// MaxPrice is the largest storable amount, matching NUMERIC(12,2).
var MaxPrice = decimal.New(999_999_999_999, -pricePlaces)

// ParseAmount parses the textual form of an amount. Inputs longer than 64
// bytes or with an exponent outside ±MaxAmountExponent are rejected; zero is
// returned in canonical form whatever its exponent.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if len(raw) > maxAmountLength {
		return decimal.Decimal{}, errors.Errorf("amount longer than %d bytes", maxAmountLength)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse amount %q", raw)
	}
	if v.IsZero() {
		return decimal.Zero, nil
	}
	if !boundedExponent(v) {
		return decimal.Decimal{}, errors.Errorf("amount %q out of range", raw)
	}
	return v, nil
}

func boundedExponent(v decimal.Decimal) bool {
	e := v.Exponent()
	return e <= MaxAmountExponent && e >= -MaxAmountExponent
}

// InPriceRange reports whether amount, once rounded to two places, lies
// within [0, MaxPrice]. Amounts with an exponent outside ±MaxAmountExponent
// are out of range.
func InPriceRange(amount decimal.Decimal) bool {
	if amount.IsNegative() || !boundedExponent(amount) {
		return false
	}
	return amount.Round(pricePlaces).LessThanOrEqual(MaxPrice)
}

// Normalize converts a raw amount and currency into their stored form: the
// amount rounded half away from zero to two places, the currency upper-cased.
func Normalize(amount decimal.Decimal, currency string) (decimal.Decimal, string) {
	return amount.Round(pricePlaces), strings.ToUpper(currency)
}

// NewPriceRecord builds a normalized PriceRecord.
func NewPriceRecord(id int64, amount decimal.Decimal, currency string) PriceRecord {
	amount, currency = Normalize(amount, currency)
	return PriceRecord{
		ProductID: id,
		Amount:    amount,
		Currency:  currency,
	}
}
