package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-products/internal/domain/product"
)

const (
	currencyKnownSQL = `SELECT EXISTS (SELECT 1 FROM currency_codes WHERE code = $1)`
	addCurrencySQL   = `INSERT INTO currency_codes (code) VALUES ($1) ON CONFLICT (code) DO NOTHING`
)

var _ product.CurrencySet = (*CurrencyRepository)(nil)

// CurrencyRepository implements product.CurrencySet backed by PostgreSQL.
type CurrencyRepository struct {
	pool *pgxpool.Pool
}

// NewCurrencyRepository returns a CurrencyRepository that uses the given pool.
func NewCurrencyRepository(pool *pgxpool.Pool) *CurrencyRepository {
	return &CurrencyRepository{pool: pool}
}

// IsKnown reports whether code is an accepted currency. Codes are stored
// upper-case; the caller passes the canonical form.
func (r *CurrencyRepository) IsKnown(ctx context.Context, code string) (bool, error) {
	var known bool
	if err := r.pool.QueryRow(ctx, currencyKnownSQL, code).Scan(&known); err != nil {
		return false, errors.Wrapf(err, "lookup currency %q", code)
	}
	return known, nil
}

// Add registers a currency code.
func (r *CurrencyRepository) Add(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, addCurrencySQL, strings.ToUpper(code)); err != nil {
		return errors.Wrapf(err, "add currency %q", code)
	}
	return nil
}
