// Package redsky implements product.Catalog over the RedSky product detail API.
package redsky

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/domain/product"
)

// maxBodySize bounds the upstream response read into memory.
const maxBodySize = 4 << 20

var _ product.Catalog = (*Client)(nil)

// Config holds the upstream location and call bounds.
type Config struct {
	URL      string        `default:"https://redsky.target.com/v2/pdp/tcin" usage:"Product detail API base URL"`
	Excludes string        `default:"taxonomy,price,promotion,bulk_ship,rating_and_review_reviews,rating_and_review_statistics,question_answer_statistics" usage:"Sections excluded from upstream responses"`
	Timeout  time.Duration `default:"3s" usage:"Upstream call timeout"`
}

// Client fetches product details with a single bounded attempt per call.
type Client struct {
	base     *url.URL
	excludes string
	http     *http.Client
	tracer   trace.Tracer
}

type options struct {
	transport      http.RoundTripper
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Client.
type Option func(*options)

// WithTransport sets the base round tripper wrapped by instrumentation.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTracerProvider sets the tracer provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for HTTP client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("catalog url %q must be absolute", cfg.URL)
	}

	o := options{
		transport:      http.DefaultTransport,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		base:     base,
		excludes: cfg.Excludes,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(o.transport,
				otelhttp.WithTracerProvider(o.tracerProvider),
				otelhttp.WithMeterProvider(o.meterProvider),
			),
		},
		tracer: o.tracerProvider.Tracer("github.com/xenking/retail-products/internal/redsky"),
	}, nil
}

// Fetch returns the catalog record for id. Client errors map to
// product.ErrProductNotFound; server errors, transport faults and
// undecodable bodies map to *product.CatalogUnavailableError.
func (c *Client) Fetch(ctx context.Context, id int64) (product.CatalogRecord, error) {
	if id < 0 {
		return product.CatalogRecord{}, product.ErrProductNotFound
	}

	ctx, span := c.tracer.Start(ctx, "redsky.Fetch",
		trace.WithAttributes(attribute.Int64("product.id", id)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.Int64("product_id", id))
	lg.Debug("Fetching product from catalog")

	unavailable := func(status int, reason string) (product.CatalogRecord, error) {
		err := &product.CatalogUnavailableError{ProductID: id, StatusCode: status, Reason: reason}
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		lg.Warn("Catalog unavailable", zap.Int("status", status), zap.String("reason", reason))
		return product.CatalogRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productURL(id), http.NoBody)
	if err != nil {
		return unavailable(0, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return unavailable(resp.StatusCode, http.StatusText(resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		lg.Debug("Catalog client error", zap.Int("status", resp.StatusCode))
		return product.CatalogRecord{}, product.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return unavailable(resp.StatusCode, "unexpected status")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return unavailable(resp.StatusCode, err.Error())
	}

	rec, err := decodeProduct(body, id)
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		lg.Debug("Catalog response carried no product")
		return product.CatalogRecord{}, err
	case err != nil:
		return unavailable(resp.StatusCode, err.Error())
	}
	return rec, nil
}

func (c *Client) productURL(id int64) string {
	u := c.base.JoinPath(strconv.FormatInt(id, 10))
	if c.excludes != "" {
		q := u.Query()
		q.Set("excludes", c.excludes)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
