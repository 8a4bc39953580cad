package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when the catalog does not know a product.
	ErrProductNotFound = errors.New("product not found")
	// ErrPriceNotFound is returned when no price is on file for a product.
	ErrPriceNotFound = errors.New("price not found")
	// ErrCatalogUnavailable is wrapped by CatalogUnavailableError.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// CatalogUnavailableError indicates the catalog could not answer: a server
// error, a transport fault, or a response that could not be decoded.
type CatalogUnavailableError struct {
	ProductID  int64
	StatusCode int // zero when no response was received
	Reason     string
}

func (e *CatalogUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog unavailable: HTTP %d: product %d: %s", e.StatusCode, e.ProductID, e.Reason)
	}
	return fmt.Sprintf("catalog unavailable: product %d: %s", e.ProductID, e.Reason)
}

func (e *CatalogUnavailableError) Unwrap() error { return ErrCatalogUnavailable }

// CatalogRecord is the catalog's view of a product. Described is false when
// the upstream item carried no description; Title is nil when the description
// has no title.
type CatalogRecord struct {
	ID        int64
	Described bool
	Title     *string
}

// PriceRecord is the stored price of a product.
type PriceRecord struct {
	ProductID int64
	Amount    decimal.Decimal
	Currency  string
}

// Catalog fetches authoritative product data.
type Catalog interface {
	Fetch(ctx context.Context, id int64) (CatalogRecord, error)
}

// PriceStore persists prices keyed by product id.
type PriceStore interface {
	Get(ctx context.Context, id int64) (PriceRecord, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Upsert(ctx context.Context, rec PriceRecord) error
}

// CurrencySet is the reference set of accepted currency codes.
type CurrencySet interface {
	IsKnown(ctx context.Context, code string) (bool, error)
	Add(ctx context.Context, code string) error
}

// SaveOperation tells whether a price write created or modified a record.
type SaveOperation int

const (
	SaveUpdated SaveOperation = iota
	SaveCreated
)

func (op SaveOperation) String() string {
	if op == SaveCreated {
		return "created"
	}
	return "updated"
}

// PriceUpdate is the body of a price write. Name is accepted but never stored.
type PriceUpdate struct {
	Name  *string
	Price *PriceInput
}

// PriceInput is the price part of a PriceUpdate.
type PriceInput struct {
	Value        *decimal.Decimal
	CurrencyCode string
}
