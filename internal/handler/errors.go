package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/domain/product"
)

// writeError maps a domain error onto an HTTP status and error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var vErr *product.ValidationError
	if errors.As(err, &vErr) {
		writeStatus(w, http.StatusBadRequest, vErr.Message)
		return
	}

	if errors.Is(err, product.ErrProductNotFound) {
		writeStatus(w, http.StatusNotFound, "Product not found")
		return
	}

	var uErr *product.CatalogUnavailableError
	if errors.As(err, &uErr) {
		lg.Error("Catalog unavailable", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "Product catalog is unavailable")
		return
	}

	lg.Error("Request failed", zap.Error(err))
	writeStatus(w, http.StatusInternalServerError, "Internal server error")
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, encodeError(status, message))
}

func writeDocument(w http.ResponseWriter, status int, doc product.Document) {
	writeJSON(w, status, encodeDocument(doc))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
