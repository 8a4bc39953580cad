// Package redis implements the pricing store and currency set on Redis.
//
// Each price is a hash at "price:{id}" with fields amount and currency.
// Known currency codes live in the set "currencies".
package redis

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/retail-products/internal/domain/product"
)

const (
	currencySetKey = "currencies"
	fieldAmount    = "amount"
	fieldCurrency  = "currency"
)

var (
	_ product.PriceStore  = (*PriceStore)(nil)
	_ product.CurrencySet = (*CurrencySet)(nil)
)

// Connect parses a redis:// URL, creates a client and pings it.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func priceKey(id int64) string {
	return "price:" + strconv.FormatInt(id, 10)
}

// PriceStore implements product.PriceStore on Redis hashes.
type PriceStore struct {
	rdb redis.Cmdable
}

// NewPriceStore returns a PriceStore using rdb.
func NewPriceStore(rdb redis.Cmdable) *PriceStore {
	return &PriceStore{rdb: rdb}
}

// Get returns the price of id, or product.ErrPriceNotFound when no hash
// exists for it.
func (s *PriceStore) Get(ctx context.Context, id int64) (product.PriceRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, priceKey(id)).Result()
	if err != nil {
		return product.PriceRecord{}, errors.Wrapf(err, "get price %d", id)
	}
	if len(fields) == 0 {
		return product.PriceRecord{}, product.ErrPriceNotFound
	}

	amount, err := decimal.NewFromString(fields[fieldAmount])
	if err != nil {
		return product.PriceRecord{}, errors.Wrapf(err, "parse amount of price %d", id)
	}
	return product.PriceRecord{
		ProductID: id,
		Amount:    amount,
		Currency:  fields[fieldCurrency],
	}, nil
}

// Exists reports whether a price is stored for id.
func (s *PriceStore) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, priceKey(id)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "check price %d", id)
	}
	return n > 0, nil
}

// Upsert writes both fields in a single HSET so readers never see a
// half-updated price.
func (s *PriceStore) Upsert(ctx context.Context, rec product.PriceRecord) error {
	err := s.rdb.HSet(ctx, priceKey(rec.ProductID),
		fieldAmount, rec.Amount.StringFixed(2),
		fieldCurrency, rec.Currency,
	).Err()
	if err != nil {
		return errors.Wrapf(err, "upsert price %d", rec.ProductID)
	}
	return nil
}

// CurrencySet implements product.CurrencySet on a Redis set.
type CurrencySet struct {
	rdb redis.Cmdable
}

// NewCurrencySet returns a CurrencySet using rdb.
func NewCurrencySet(rdb redis.Cmdable) *CurrencySet {
	return &CurrencySet{rdb: rdb}
}

// IsKnown reports whether code is a member of the currency set. Codes are
// matched as given; callers upper-case them first.
func (s *CurrencySet) IsKnown(ctx context.Context, code string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, currencySetKey, code).Result()
	if err != nil {
		return false, errors.Wrapf(err, "lookup currency %q", code)
	}
	return ok, nil
}

// Add registers code, upper-cased. Adding a known code is a no-op.
func (s *CurrencySet) Add(ctx context.Context, code string) error {
	if err := s.rdb.SAdd(ctx, currencySetKey, strings.ToUpper(code)).Err(); err != nil {
		return errors.Wrapf(err, "add currency %q", code)
	}
	return nil
}
