package product

import (
	"context"

	"github.com/go-faster/errors"
)

// Service orchestrates catalog and pricing lookups. The catalog decides
// whether a product exists; pricing is optional decoration.
type Service struct {
	catalog Catalog
	prices  PriceStore
}

// NewService creates a Service over the given collaborators.
func NewService(catalog Catalog, prices PriceStore) *Service {
	return &Service{
		catalog: catalog,
		prices:  prices,
	}
}

// GetProduct fetches the catalog record and, if it exists, the price, and
// merges them into a Document. ErrProductNotFound and CatalogUnavailableError
// abort the read; a missing price does not.
func (s *Service) GetProduct(ctx context.Context, id int64) (Document, error) {
	rec, err := s.catalog.Fetch(ctx, id)
	if err != nil {
		var unavailable *CatalogUnavailableError
		switch {
		case errors.Is(err, ErrProductNotFound):
			return Document{}, ErrProductNotFound
		case errors.As(err, &unavailable):
			return Document{}, err
		default:
			return Document{}, errors.Wrap(err, "fetch catalog")
		}
	}

	var price *PriceRecord
	switch p, err := s.prices.Get(ctx, id); {
	case err == nil:
		price = &p
	case errors.Is(err, ErrPriceNotFound):
	default:
		return Document{}, errors.Wrap(err, "get price")
	}

	return Assemble(&rec).WithPrice(price).Build(), nil
}

// SavePrice stores the normalized price of u and reports whether the record
// was created or updated. The classification reflects the state before the
// write; the check and the write are not atomic.
func (s *Service) SavePrice(ctx context.Context, id int64, u *PriceUpdate) (SaveOperation, error) {
	if !IsValidPriceValue(u) {
		return SaveUpdated, &ValidationError{Field: "current_price", Message: MsgMissingPrice}
	}
	if !InPriceRange(*u.Price.Value) {
		return SaveUpdated, &ValidationError{Field: "current_price.value", Message: MsgPriceTooLarge}
	}

	exists, err := s.prices.Exists(ctx, id)
	if err != nil {
		return SaveUpdated, errors.Wrap(err, "check price")
	}
	op := SaveUpdated
	if !exists {
		op = SaveCreated
	}

	rec := NewPriceRecord(id, *u.Price.Value, u.Price.CurrencyCode)
	if err := s.prices.Upsert(ctx, rec); err != nil {
		return op, errors.Wrap(err, "upsert price")
	}
	return op, nil
}
