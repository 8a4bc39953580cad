// Package app wires configuration, storage, the catalog client and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/domain/product"
	"github.com/xenking/retail-products/internal/handler"
	"github.com/xenking/retail-products/internal/redsky"
	"github.com/xenking/retail-products/pkg/health"
	"github.com/xenking/retail-products/pkg/httpmiddleware"
)

const serviceName = "products-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("pricing_backend", cfg.Pricing.Backend),
		zap.String("catalog_url", cfg.Catalog.URL),
	)

	stores, err := OpenStores(ctx, lg, cfg.Pricing, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open pricing stores")
	}
	defer stores.Close()

	healthSvc := newHealth(lg, stores)
	healthSvc.Start(ctx, 10*time.Second)

	h, err := newHandler(ctx, cfg, stores, healthSvc, m)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Catalog.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newHealth(lg *zap.Logger, stores *Stores) *health.Health {
	h := health.New(health.WithLogger(lg.Named("health")))
	h.AddReadinessCheck("pricing", 5*time.Second, stores.Ping)
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	h.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	return h
}

// newHandler builds the routed, middleware-wrapped HTTP handler.
func newHandler(ctx context.Context, cfg *Config, stores *Stores, healthSvc *health.Health, m httpmiddleware.TelemetryProvider) (http.Handler, error) {
	catalog, err := redsky.NewClient(cfg.Catalog,
		redsky.WithTracerProvider(m.TracerProvider()),
		redsky.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create catalog client")
	}

	h, err := handler.NewHandler(
		product.NewService(catalog, stores.Prices),
		product.NewValidator(stores.Currencies),
		m.MeterProvider(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	route := httpmiddleware.MuxRoute(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Accept", httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, route, m),
		httpmiddleware.LogRequests(route),
	), nil
}
