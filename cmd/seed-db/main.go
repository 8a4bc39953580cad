package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/app"
	"github.com/xenking/retail-products/internal/domain/product"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Pricing     app.PricingConfig
	SkipPrices  bool `default:"false" usage:"Seed only currency codes" flag:"skip-prices"`
}

var currencies = []string{"USD", "EUR", "INR"}

var prices = []struct {
	id    int64
	value string
}{
	{16696652, "26.00"},
	{15381137, "14.00"},
	{52343337, "69.99"},
	{51959212, "49.99"},
	{52384081, "37.99"},
	{50953802, "37.99"},
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func loadConfig() (*config, error) {
	_ = godotenv.Load()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRODUCTS",
		SkipFiles: true,
	}).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Pricing.RedisURL == "" {
		cfg.Pricing.RedisURL = os.Getenv("REDIS_URL")
	}
	return &cfg, nil
}

func run(ctx context.Context, lg *zap.Logger, cfg *config) error {
	stores, err := app.OpenStores(ctx, lg, cfg.Pricing, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open pricing stores")
	}
	defer stores.Close()

	for _, code := range currencies {
		if err := stores.Currencies.Add(ctx, code); err != nil {
			return errors.Wrapf(err, "seed currency %s", code)
		}
	}
	lg.Info("Currencies seeded", zap.Strings("codes", currencies))

	if cfg.SkipPrices {
		return nil
	}

	for _, p := range prices {
		rec := product.NewPriceRecord(p.id, decimal.RequireFromString(p.value), "USD")
		if err := stores.Prices.Upsert(ctx, rec); err != nil {
			return errors.Wrapf(err, "seed price %d", p.id)
		}
	}
	lg.Info("Prices seeded", zap.Int("count", len(prices)))
	return nil
}
