// Package handler serves the product resource over net/http.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/retail-products/internal/domain/product"
)

// ProductService is the orchestration the handler delegates to.
type ProductService interface {
	GetProduct(ctx context.Context, id int64) (product.Document, error)
	SavePrice(ctx context.Context, id int64, u *product.PriceUpdate) (product.SaveOperation, error)
}

// PriceValidator checks a price update before it is saved.
type PriceValidator interface {
	ValidatePriceUpdate(ctx context.Context, u *product.PriceUpdate) error
}

var (
	_ ProductService = (*product.Service)(nil)
	_ PriceValidator = (*product.Validator)(nil)
)

// Handler serves GET and PUT on /products/{id}.
type Handler struct {
	products  ProductService
	validator PriceValidator
	saves     metric.Int64Counter
}

// NewHandler constructs a Handler. Price saves are counted on a meter
// obtained from mp.
func NewHandler(products ProductService, validator PriceValidator, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter("github.com/xenking/retail-products/internal/handler")
	saves, err := meter.Int64Counter("products.price.saves",
		metric.WithDescription("Price writes by outcome"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create saves counter")
	}

	return &Handler{
		products:  products,
		validator: validator,
		saves:     saves,
	}, nil
}

// Register attaches the product routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("GET /products/{$}", h.listProducts)
	mux.HandleFunc("GET /products/{id}", h.getProduct)
	mux.HandleFunc("PUT /products/{$}", h.missingID)
	mux.HandleFunc("PUT /products/{id}", h.putProduct)
}
