package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/app"
	"github.com/xenking/retail-products/internal/ingest"
)

type config struct {
	DataDir     string `default:"data" usage:"Directory containing *.jsonl.gz price feeds" flag:"data-dir"`
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Pricing     app.PricingConfig
	Ingest      ingest.Config
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
		lg.Fatal("Price ingest failed", zap.Error(err))
	}
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
	files, err := ingest.DiscoverFeeds(cfg.DataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		lg.Info("No feeds found", zap.String("dir", cfg.DataDir), zap.String("pattern", ingest.FeedPattern))
		return nil
	}

	stores, err := app.OpenStores(ctx, lg, cfg.Pricing, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open pricing stores")
	}
	defer stores.Close()

	im := ingest.NewImporter(cfg.Ingest, stores.Prices, stores.Currencies, lg)
	stats, err := im.Import(ctx, files)
	lg.Info("Price ingest finished",
		zap.Int("feeds", stats.Feeds),
		zap.Uint64("records", stats.Records),
		zap.Uint64("written", stats.Written),
		zap.Uint64("superseded", stats.Superseded),
		zap.Uint64("invalid", stats.Invalid),
		zap.Uint64("malformed", stats.Malformed),
	)
	return err
}
