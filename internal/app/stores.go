package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/domain/product"
	"github.com/xenking/retail-products/internal/storage/postgres"
	"github.com/xenking/retail-products/internal/storage/redis"
	"github.com/xenking/retail-products/pkg/health"
)

// Stores bundles the pricing backend selected by configuration.
type Stores struct {
	Prices     product.PriceStore
	Currencies product.CurrencySet
	// Ping verifies the backend connection; used as a readiness check.
	Ping  health.CheckFunc
	close func()
}

// Close releases the backend connection.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to the configured pricing backend. For PostgreSQL it
// also applies migrations unless cfg.Migrate is false.
func OpenStores(ctx context.Context, lg *zap.Logger, cfg PricingConfig, databaseURL string) (*Stores, error) {
	if err := cfg.Validate(databaseURL); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendRedis:
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect to redis")
		}
		lg.Info("Pricing backend ready", zap.String("backend", BackendRedis))
		return &Stores{
			Prices:     redis.NewPriceStore(rdb),
			Currencies: redis.NewCurrencySet(rdb),
			Ping:       func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close:      func() { _ = rdb.Close() },
		}, nil

	default:
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, errors.Wrap(err, "run migrations")
			}
			lg.Info("Migrations applied")
		}
		lg.Info("Pricing backend ready", zap.String("backend", BackendPostgres))
		return &Stores{
			Prices:     postgres.NewPriceRepository(pool),
			Currencies: postgres.NewCurrencyRepository(pool),
			Ping:       health.PingCheck(pool),
			close:      pool.Close,
		}, nil
	}
}
