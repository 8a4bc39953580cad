package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/redsky"
	"github.com/xenking/retail-products/pkg/httpmiddleware"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

// catalogTitles is served by the fake product detail API.
var catalogTitles = map[int64]string{
	13860428: "The Big Lebowski (Blu-ray)",
	54456119: "Creamy Peanut Butter 40oz",
}

func newFakeCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/pdp/tcin/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		title, ok := catalogTitles[id]
		if !ok {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"product":{"item":{"tcin":"`+r.PathValue("id")+
			`","product_description":{"title":"`+title+`"}}}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer wires the full middleware stack over a fake catalog and a
// miniredis pricing backend.
func newTestServer(t *testing.T, rateLimit RateLimitConfig) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mr := miniredis.RunT(t)
	catalog := newFakeCatalog(t)

	cfg := &Config{
		Catalog: redsky.Config{URL: catalog.URL + "/v2/pdp/tcin", Timeout: time.Second},
		Pricing: PricingConfig{
			Backend:  BackendRedis,
			RedisURL: "redis://" + mr.Addr(),
		},
		RateLimit: rateLimit,
		CORS:      CORSConfig{Origins: []string{"*"}},
	}

	lg := zap.NewNop()
	stores, err := OpenStores(ctx, lg, cfg.Pricing, "")
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	require.NoError(t, stores.Currencies.Add(ctx, "USD"))

	healthSvc := newHealth(lg, stores)
	healthSvc.Start(ctx, time.Minute)
	t.Cleanup(healthSvc.Stop)
	healthSvc.SetReady(true)

	h, err := newHandler(ctx, cfg, stores, healthSvc, noopTelemetry{})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, mr
}

func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

var generousLimit = RateLimitConfig{RPS: 1000, Burst: 1000}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, generousLimit)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, body := do(t, http.MethodGet, srv.URL+path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.JSONEq(t, `{"status":"ok"}`, body, path)
	}
}

func TestServer_PriceRoundTrip(t *testing.T) {
	srv, mr := newTestServer(t, generousLimit)
	url := srv.URL + "/products/13860428"

	resp, body := do(t, http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"data":[{"id":13860428,"name":"The Big Lebowski (Blu-ray)"}],
		"errors":[{"source":"pricing","message":"Product not found"}]
	}`, body)

	resp, body = do(t, http.MethodPut, url, `{"current_price":{"value":13.49,"currency_code":"usd"}}`,
		http.Header{"Content-Type": {"application/json"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "13.49", mr.HGet("price:13860428", "amount"))

	resp, body = do(t, http.MethodPut, url, `{"current_price":{"value":"14.999","currency_code":"USD"}}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = do(t, http.MethodGet, url, "", http.Header{"Accept": {"application/json"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{
		"data":[{"id":13860428,"name":"The Big Lebowski (Blu-ray)","current_price":{"value":15.00,"currency_code":"USD"}}],
		"errors":[]
	}`, body)
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t, generousLimit)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header http.Header
		want   int
	}{
		{name: "unknown product", method: http.MethodGet, path: "/products/1", want: http.StatusNotFound},
		{name: "non numeric id", method: http.MethodGet, path: "/products/abc", want: http.StatusBadRequest},
		{name: "collection", method: http.MethodGet, path: "/products", want: http.StatusNotImplemented},
		{name: "unsupported accept", method: http.MethodGet, path: "/products/54456119", header: http.Header{"Accept": {"text/html"}}, want: http.StatusNotAcceptable},
		{name: "unknown currency", method: http.MethodPut, path: "/products/54456119", body: `{"current_price":{"value":1,"currency_code":"XXX"}}`, want: http.StatusBadRequest},
		{name: "negative value", method: http.MethodPut, path: "/products/54456119", body: `{"current_price":{"value":-1,"currency_code":"USD"}}`, want: http.StatusBadRequest},
		{name: "price too large", method: http.MethodPut, path: "/products/54456119", body: `{"current_price":{"value":1e100000000,"currency_code":"USD"}}`, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPut, path: "/products/54456119", body: `{"current_price":`, want: http.StatusBadRequest},
		{name: "method not allowed", method: http.MethodDelete, path: "/products/54456119", want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body, tt.header)
			assert.Equal(t, tt.want, resp.StatusCode, body)
		})
	}
}

func TestServer_RequestID(t *testing.T) {
	srv, _ := newTestServer(t, generousLimit)

	resp, _ := do(t, http.MethodGet, srv.URL+"/livez", "", nil)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.HeaderRequestID))

	resp, _ = do(t, http.MethodGet, srv.URL+"/livez", "", http.Header{
		httpmiddleware.HeaderRequestID: {"custom-request-id-12345"},
	})
	assert.Equal(t, "custom-request-id-12345", resp.Header.Get(httpmiddleware.HeaderRequestID))
}

func TestServer_CORS(t *testing.T) {
	srv, _ := newTestServer(t, generousLimit)

	resp, _ := do(t, http.MethodOptions, srv.URL+"/products/54456119", "", http.Header{
		"Origin":                        {"http://example.com"},
		"Access-Control-Request-Method": {"PUT"},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PUT")

	resp, _ = do(t, http.MethodGet, srv.URL+"/products/54456119", "", http.Header{
		"Origin": {"http://example.com"},
	})
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, RateLimitConfig{RPS: 0.001, Burst: 2})

	for i := range 2 {
		resp, _ := do(t, http.MethodGet, srv.URL+"/livez", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/livez", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, body, "rate limit exceeded")
}
