package product

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Validation messages returned to clients.
const (
	MsgInvalidProductID = "A valid product id greater than or equal to 0 must be provided"
	MsgMissingPrice     = "Not enough information provided to update price"
	MsgNegativePrice    = "Price must be greater than or equal to 0"
	MsgPriceTooLarge    = "Price must be less than or equal to 9999999999.99"
	MsgUnknownCurrency  = "Price currency code is unknown"
)

// ValidationError describes a request that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidProductID reports whether id names a product.
func IsValidProductID(id int64) bool {
	return id >= 0
}

// IsValidPriceValue reports whether u carries a price with a non-negative value.
func IsValidPriceValue(u *PriceUpdate) bool {
	return u != nil && u.Price != nil && u.Price.Value != nil && !u.Price.Value.IsNegative()
}

// ParseProductID parses a product id from its path form.
func ParseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !IsValidProductID(id) {
		return 0, &ValidationError{Field: "id", Message: MsgInvalidProductID}
	}
	return id, nil
}

// Validator checks price updates before they reach the Service.
type Validator struct {
	currencies CurrencySet
	shape      *validator.Validate
}

// NewValidator creates a Validator checking currency codes against currencies.
func NewValidator(currencies CurrencySet) *Validator {
	return &Validator{
		currencies: currencies,
		shape:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidatePriceUpdate returns a *ValidationError for the first failing check.
// Any other error means the currency set could not be consulted.
func (v *Validator) ValidatePriceUpdate(ctx context.Context, u *PriceUpdate) error {
	if u == nil || u.Price == nil || u.Price.Value == nil {
		return &ValidationError{Field: "current_price", Message: MsgMissingPrice}
	}
	if !IsValidPriceValue(u) {
		return &ValidationError{Field: "current_price.value", Message: MsgNegativePrice}
	}
	if !InPriceRange(*u.Price.Value) {
		return &ValidationError{Field: "current_price.value", Message: MsgPriceTooLarge}
	}

	unknown := &ValidationError{Field: "current_price.currency_code", Message: MsgUnknownCurrency}
	code := strings.ToUpper(u.Price.CurrencyCode)
	if err := v.shape.Var(code, "required,alpha,len=3"); err != nil {
		return unknown
	}
	known, err := v.currencies.IsKnown(ctx, code)
	if err != nil {
		return errors.Wrapf(err, "lookup currency %q", code)
	}
	if !known {
		return unknown
	}
	return nil
}
