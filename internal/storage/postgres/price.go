package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-products/internal/domain/product"
)

const (
	getPriceSQL    = `SELECT id, amount, currency FROM prices WHERE id = $1`
	priceExistsSQL = `SELECT EXISTS (SELECT 1 FROM prices WHERE id = $1)`
	upsertPriceSQL = `INSERT INTO prices (id, amount, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET amount = EXCLUDED.amount, currency = EXCLUDED.currency, updated_at = now()`
)

var _ product.PriceStore = (*PriceRepository)(nil)

// PriceRepository implements product.PriceStore backed by PostgreSQL.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository returns a PriceRepository that uses the given pool.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// Get returns the price of a product or product.ErrPriceNotFound.
func (r *PriceRepository) Get(ctx context.Context, id int64) (product.PriceRecord, error) {
	rows, err := r.pool.Query(ctx, getPriceSQL, id)
	if err != nil {
		return product.PriceRecord{}, errors.Wrapf(err, "get price %d", id)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.PriceRecord{}, product.ErrPriceNotFound
		}
		return product.PriceRecord{}, errors.Wrapf(err, "get price %d", id)
	}
	return rec, nil
}

// Exists reports whether a price is on file for the product.
func (r *PriceRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, priceExistsSQL, id).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check price %d", id)
	}
	return exists, nil
}

// Upsert inserts or replaces the price of a product.
func (r *PriceRepository) Upsert(ctx context.Context, rec product.PriceRecord) error {
	if _, err := r.pool.Exec(ctx, upsertPriceSQL, rec.ProductID, rec.Amount, rec.Currency); err != nil {
		return errors.Wrapf(err, "upsert price %d", rec.ProductID)
	}
	return nil
}

func scanPrice(row pgx.CollectableRow) (product.PriceRecord, error) {
	var p product.PriceRecord
	err := row.Scan(&p.ProductID, &p.Amount, &p.Currency)
	return p, err
}
