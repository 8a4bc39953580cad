package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/retail-products/internal/redsky"
)

const defaultAddr = "0.0.0.0:8080"

// Pricing store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRODUCTS_ prefix), flags, a .env file, or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PRODUCTS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Catalog     redsky.Config
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PricingConfig selects where prices and currency codes are stored.
type PricingConfig struct {
	Backend  string `default:"postgres" usage:"Pricing backend: postgres or redis" flag:"pricing-backend"`
	RedisURL string `usage:"Redis URL for the redis backend (PRODUCTS_PRICING_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Migrate  bool   `default:"true" usage:"Apply PostgreSQL migrations on startup" flag:"migrate"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `default:"20" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env (if present), then environment variables, YAML
// config files and flags, applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PRODUCTS",
		Files:     []string{"config.yaml", "/etc/products/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided variables such as DATABASE_URL,
// REDIS_URL and PORT onto the PRODUCTS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Pricing.RedisURL == "" {
		c.Pricing.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if err := c.Pricing.Validate(c.DatabaseURL); err != nil {
		return err
	}

	u, err := url.Parse(c.Catalog.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("catalog URL %q must be an absolute URL", c.Catalog.URL)
	}
	if c.Catalog.Timeout <= 0 {
		return errors.New("catalog timeout must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit RPS and burst must be positive")
	}
	return nil
}

// Validate checks that the selected backend has a connection URL.
func (p PricingConfig) Validate(databaseURL string) error {
	switch p.Backend {
	case BackendPostgres:
		if databaseURL == "" {
			return errors.New("database URL is required: set PRODUCTS_DATABASE_URL or DATABASE_URL")
		}
	case BackendRedis:
		if p.RedisURL == "" {
			return errors.New("redis URL is required: set PRODUCTS_PRICING_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown pricing backend %q", p.Backend)
	}
	return nil
}
