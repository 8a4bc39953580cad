package handler

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/retail-products/internal/domain/product"
)

// maxBodySize bounds PUT payloads.
const maxBodySize = 1 << 20

func (h *Handler) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusNotImplemented, "Listing products is not supported")
}

func (h *Handler) missingID(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, &product.ValidationError{Field: "id", Message: product.MsgInvalidProductID})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	if !acceptsJSON(r) {
		writeStatus(w, http.StatusNotAcceptable, "Only application/json responses are supported")
		return
	}

	id, err := product.ParseProductID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

func (h *Handler) putProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !acceptsJSON(r) {
		writeStatus(w, http.StatusNotAcceptable, "Only application/json responses are supported")
		return
	}

	id, err := product.ParseProductID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "Unable to read request body")
		return
	}
	update, err := decodePriceUpdate(body)
	if err != nil {
		zctx.From(ctx).Debug("Malformed price update", zap.Error(err))
		writeStatus(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.ValidatePriceUpdate(ctx, update); err != nil {
		writeError(w, r, err)
		return
	}

	op, err := h.products.SavePrice(ctx, id, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op.String())))
	zctx.From(ctx).Info("Price saved",
		zap.Int64("product_id", id),
		zap.Stringer("operation", op),
	)

	doc, err := h.products.GetProduct(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if op == product.SaveCreated {
		status = http.StatusCreated
	}
	writeDocument(w, status, doc)
}

// acceptsJSON reports whether the Accept header allows a JSON response.
// A missing header accepts anything.
func acceptsJSON(r *http.Request) bool {
	accept := r.Header.Values("Accept")
	if len(accept) == 0 {
		return true
	}
	for _, header := range accept {
		for _, part := range strings.Split(header, ",") {
			mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			switch mt {
			case "application/json", "application/*", "*/*":
				return true
			}
		}
	}
	return false
}
