package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/token-checkout/internal/checkout"
	"github.com/xenking/token-checkout/internal/domain/cart"
)

func respondJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// field is one extra key/value in an error body. Numeric values are emitted
// as JSON numbers.
type field struct {
	key   string
	str   string
	num   int64
	isNum bool
}

func strField(key, value string) field   { return field{key: key, str: value} }
func numField(key string, v int64) field { return field{key: key, num: v, isNum: true} }

func respondErrorBody(w http.ResponseWriter, status int, errName, message string, extra []field) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("statusCode", func(e *jx.Encoder) { e.Int(status) })
		e.Field("error", func(e *jx.Encoder) { e.Str(errName) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		for _, f := range extra {
			f := f
			e.Field(f.key, func(e *jx.Encoder) {
				if f.isNum {
					e.Int64(f.num)
				} else {
					e.Str(f.str)
				}
			})
		}
	})
	respondJSON(w, status, e)
}

// respondError maps domain errors to HTTP responses. Conflicts carry their
// structured detail so a caller can act on them without parsing messages.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound    *cart.NotFoundError
		invalidSKU  *cart.InvalidSKUError
		invalidQty  *cart.InvalidQuantityError
		verConflict *cart.VersionConflictError
		keyConflict *checkout.KeyConflictError
	)

	switch {
	case errors.As(err, &notFound):
		respondErrorBody(w, http.StatusNotFound, "NotFound", err.Error(), []field{
			strField("code", "RESOURCE_NOT_FOUND"),
		})
	case errors.As(err, &invalidSKU):
		respondErrorBody(w, http.StatusUnprocessableEntity, "InvalidSKU", err.Error(), []field{
			strField("code", "INVALID_SKU"),
		})
	case errors.As(err, &invalidQty):
		respondErrorBody(w, http.StatusUnprocessableEntity, "InvalidQuantity", err.Error(), []field{
			strField("code", "INVALID_QUANTITY"),
		})
	case errors.As(err, &verConflict):
		respondErrorBody(w, http.StatusConflict, "CartVersionConflict", err.Error(), []field{
			strField("code", "VERSION_CONFLICT"),
			strField("cartId", verConflict.ID),
			numField("expectedVersion", verConflict.Expected),
			numField("actualVersion", verConflict.Actual),
		})
	case errors.As(err, &keyConflict):
		respondErrorBody(w, http.StatusConflict, "IdempotencyKeyConflict", err.Error(), []field{
			strField("code", "IDEMPOTENCY_KEY_CONFLICT"),
			strField("idempotencyKey", keyConflict.Key),
			strField("expectedFingerprint", keyConflict.ExpectedFingerprint),
			strField("receivedFingerprint", keyConflict.ReceivedFingerprint),
		})
	default:
		zctx.From(r.Context()).Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondErrorBody(w, http.StatusInternalServerError, "InternalServerError",
			"An unexpected error occurred", nil)
	}
}
