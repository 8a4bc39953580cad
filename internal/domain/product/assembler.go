package product

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Error sources as they appear in responses.
const (
	SourceCatalog = "redsky"
	SourcePricing = "pricing"
)

const notFoundMessage = "Product not found"

// SourceError notes that a collaborator could not supply its data.
type SourceError struct {
	Source  string
	Message string
}

// Price is the price part of a View.
type Price struct {
	Value        decimal.Decimal
	CurrencyCode string
}

// View is the merged product. Nil fields are omitted from responses.
type View struct {
	ID    *int64
	Name  *string
	Price *Price
}

// Document is the merged response: exactly one View plus the errors recorded
// while assembling it.
type Document struct {
	Data   []View
	Errors []SourceError
}

// Assembly accumulates lookup results. Each stage returns a new Assembly and
// leaves the receiver untouched.
type Assembly struct {
	anchor *CatalogRecord
	price  *PriceRecord
	errs   []SourceError
}

// Assemble starts an Assembly anchored on a catalog record. A nil anchor is
// recorded as a catalog error.
func Assemble(anchor *CatalogRecord) Assembly {
	a := Assembly{anchor: anchor}
	if anchor == nil {
		a.errs = []SourceError{{Source: SourceCatalog, Message: notFoundMessage}}
	}
	return a
}

// WithPrice decorates the assembly with a price. Passing nil means the price
// was looked up and not found, which is recorded as a pricing error.
func (a Assembly) WithPrice(price *PriceRecord) Assembly {
	next := Assembly{
		anchor: a.anchor,
		price:  price,
		errs:   slices.Clone(a.errs),
	}
	if price == nil {
		next.errs = append(next.errs, SourceError{Source: SourcePricing, Message: notFoundMessage})
	}
	return next
}

// Build produces the Document. The view is populated only for a described
// anchor; otherwise an empty placeholder keeps the response shape stable.
func (a Assembly) Build() Document {
	var v View
	if a.anchor != nil && a.anchor.Described {
		id := a.anchor.ID
		v.ID = &id
		if a.anchor.Title != nil {
			title := *a.anchor.Title
			v.Name = &title
		}
		if a.price != nil {
			v.Price = &Price{
				Value:        a.price.Amount,
				CurrencyCode: a.price.Currency,
			}
		}
	}

	errs := slices.Clone(a.errs)
	if errs == nil {
		errs = []SourceError{}
	}
	return Document{
		Data:   []View{v},
		Errors: errs,
	}
}
