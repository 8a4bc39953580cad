package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/retail-products/internal/domain/product"
)

// --- Mock implementations ---

type mockCatalog struct {
	titles map[int64]string
	err    error
}

func (m *mockCatalog) Fetch(_ context.Context, id int64) (product.CatalogRecord, error) {
	if m.err != nil {
		return product.CatalogRecord{}, m.err
	}
	title, ok := m.titles[id]
	if !ok {
		return product.CatalogRecord{}, product.ErrProductNotFound
	}
	return product.CatalogRecord{ID: id, Described: true, Title: &title}, nil
}

type mockPriceStore struct {
	mu     sync.Mutex
	prices map[int64]product.PriceRecord
	err    error
}

func (m *mockPriceStore) Get(_ context.Context, id int64) (product.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return product.PriceRecord{}, m.err
	}
	p, ok := m.prices[id]
	if !ok {
		return product.PriceRecord{}, product.ErrPriceNotFound
	}
	return p, nil
}

func (m *mockPriceStore) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.prices[id]
	return ok, m.err
}

func (m *mockPriceStore) Upsert(_ context.Context, rec product.PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.prices[rec.ProductID] = rec
	return nil
}

type mockCurrencySet map[string]bool

func (m mockCurrencySet) IsKnown(_ context.Context, code string) (bool, error) {
	return m[code], nil
}

func (m mockCurrencySet) Add(_ context.Context, code string) error {
	m[code] = true
	return nil
}

// --- Helpers ---

const testID int64 = 13860428

type fixture struct {
	catalog *mockCatalog
	prices  *mockPriceStore
	mux     *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &mockCatalog{titles: map[int64]string{testID: "The Big Lebowski (Blu-ray)"}},
		prices: &mockPriceStore{prices: map[int64]product.PriceRecord{
			testID: product.NewPriceRecord(testID, decimal.RequireFromString("13.49"), "USD"),
		}},
		mux: http.NewServeMux(),
	}
	currencies := mockCurrencySet{"USD": true, "EUR": true, "INR": true}

	h, err := NewHandler(
		product.NewService(f.catalog, f.prices),
		product.NewValidator(currencies),
		noop.NewMeterProvider(),
	)
	require.NoError(t, err)
	h.Register(f.mux)
	return f
}

func (f *fixture) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestGetProduct_Found(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/products/13860428", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"data":[{"id":13860428,"name":"The Big Lebowski (Blu-ray)","current_price":{"value":13.49,"currency_code":"USD"}}],
		"errors":[]
	}`, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"value":13.49`)
}

func TestGetProduct_PriceMissing(t *testing.T) {
	f := newFixture(t)
	delete(f.prices.prices, testID)

	rec := f.do(http.MethodGet, "/products/13860428", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"data":[{"id":13860428,"name":"The Big Lebowski (Blu-ray)"}],
		"errors":[{"source":"pricing","message":"Product not found"}]
	}`, rec.Body.String())
}

func TestGetProduct_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		catalogErr error
		storeErr   error
		wantStatus int
		wantMsg    string
	}{
		{name: "negative id", target: "/products/-123456789", wantStatus: http.StatusBadRequest, wantMsg: product.MsgInvalidProductID},
		{name: "non numeric id", target: "/products/abc", wantStatus: http.StatusBadRequest, wantMsg: product.MsgInvalidProductID},
		{name: "catalog miss", target: "/products/1", wantStatus: http.StatusNotFound, wantMsg: "Product not found"},
		{
			name:       "catalog unavailable",
			target:     "/products/13860428",
			catalogErr: &product.CatalogUnavailableError{ProductID: testID, StatusCode: 503, Reason: "Service Unavailable"},
			wantStatus: http.StatusInternalServerError,
		},
		{name: "store failure", target: "/products/13860428", storeErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.catalog.err = tt.catalogErr
			f.prices.err = tt.storeErr

			rec := f.do(http.MethodGet, tt.target, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":`)
			if tt.wantMsg != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMsg)
			}
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestListProducts_NotImplemented(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{"/products", "/products/"} {
		rec := f.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code, target)
	}
}

func TestGetProduct_Accept(t *testing.T) {
	tests := []struct {
		accept string
		want   int
	}{
		{accept: "application/json", want: http.StatusOK},
		{accept: "*/*", want: http.StatusOK},
		{accept: "text/html, application/json;q=0.9", want: http.StatusOK},
		{accept: "application/*", want: http.StatusOK},
		{accept: "text/html", want: http.StatusNotAcceptable},
		{accept: "application/xml", want: http.StatusNotAcceptable},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(http.MethodGet, "/products/13860428", "", "Accept", tt.accept)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPutProduct_Update(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/products/13860428",
		`{"name":"ignored","current_price":{"value":100.3475,"currency_code":"uSd"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"data":[{"id":13860428,"name":"The Big Lebowski (Blu-ray)","current_price":{"value":100.35,"currency_code":"USD"}}],
		"errors":[]
	}`, rec.Body.String())
}

func TestPutProduct_Create(t *testing.T) {
	f := newFixture(t)
	delete(f.prices.prices, testID)

	rec := f.do(http.MethodPut, "/products/13860428", `{"current_price":{"value":7,"currency_code":"EUR"}}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_price":{"value":7.00,"currency_code":"EUR"}`)
}

func TestPutProduct_UnknownToCatalog(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/products/42", `{"current_price":{"value":1.5,"currency_code":"USD"}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, saved := f.prices.prices[42]
	assert.True(t, saved, "price is stored even when the catalog does not know the product")
}

func TestPutProduct_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		body    string
		wantMsg string
	}{
		{name: "negative id", target: "/products/-1", body: `{"current_price":{"value":1,"currency_code":"USD"}}`, wantMsg: product.MsgInvalidProductID},
		{name: "missing id", target: "/products/", body: `{"current_price":{"value":1,"currency_code":"USD"}}`, wantMsg: product.MsgInvalidProductID},
		{name: "empty body", target: "/products/13860428", wantMsg: product.MsgMissingPrice},
		{name: "no price", target: "/products/13860428", body: `{"name":"x"}`, wantMsg: product.MsgMissingPrice},
		{name: "null value", target: "/products/13860428", body: `{"current_price":{"value":null,"currency_code":"USD"}}`, wantMsg: product.MsgMissingPrice},
		{name: "negative price", target: "/products/13860428", body: `{"current_price":{"value":-100.00,"currency_code":"USD"}}`, wantMsg: product.MsgNegativePrice},
		{name: "unknown currency", target: "/products/13860428", body: `{"current_price":{"value":1,"currency_code":"AAA"}}`, wantMsg: product.MsgUnknownCurrency},
		{name: "missing currency", target: "/products/13860428", body: `{"current_price":{"value":1}}`, wantMsg: product.MsgUnknownCurrency},
		{name: "malformed json", target: "/products/13860428", body: `{"current_price":`, wantMsg: "Malformed request body"},
		{name: "value not a number", target: "/products/13860428", body: `{"current_price":{"value":true}}`, wantMsg: "Malformed request body"},
		{name: "price above column range", target: "/products/13860428", body: `{"current_price":{"value":10000000000,"currency_code":"USD"}}`, wantMsg: product.MsgPriceTooLarge},
		{name: "price exponent too large", target: "/products/13860428", body: `{"current_price":{"value":1e100000000,"currency_code":"USD"}}`, wantMsg: "Malformed request body"},
		{name: "trailing data", target: "/products/13860428", body: `{"current_price":{"value":1,"currency_code":"USD"}} garbage`, wantMsg: "Malformed request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.prices.prices[testID]

			rec := f.do(http.MethodPut, tt.target, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Equal(t, before, f.prices.prices[testID], "store must not change")
		})
	}
}

func TestPutProduct_CountsSaves(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	f := newFixture(t)
	h, err := NewHandler(
		product.NewService(f.catalog, f.prices),
		product.NewValidator(mockCurrencySet{"USD": true}),
		mp,
	)
	require.NoError(t, err)
	f.mux = http.NewServeMux()
	h.Register(f.mux)

	body := `{"current_price":{"value":2,"currency_code":"USD"}}`
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/products/13860428", body).Code)
	// Saved, then the re-read misses the catalog.
	require.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/products/99", body).Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "products.price.saves" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				counts[op.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"updated": 1, "created": 1}, counts)
}
