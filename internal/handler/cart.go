package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/pricing"
)

// maxBodySize bounds add-item request bodies.
const maxBodySize = 1 << 16

// createCart handles POST /api/carts.
func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.service.CreateCart(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("cartId", func(e *jx.Encoder) { e.Str(cartID) })
	})
	respondJSON(w, http.StatusCreated, e)
}

// addItemRequest is the decoded add-item body.
type addItemRequest struct {
	SKU      string
	Quantity int
}

func decodeAddItem(body []byte) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	seenSKU := false

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sku":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "sku")
			}
			req.SKU = v
			seenSKU = true
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			req.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return addItemRequest{}, err
	}

	if !seenSKU {
		return addItemRequest{}, errors.New("sku is required")
	}
	return req, nil
}

// addItem handles POST /api/carts/{cartID}/items. The Idempotency-Key
// header is required: without it a network retry could double-scan.
//
// A version conflict is retried exactly once; the retried Scan re-reads the
// latest cart state, and the idempotency check inside Scan keeps the retry
// safe. This retry is boundary policy — the checkout core never retries.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartID")

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondErrorBody(w, http.StatusBadRequest, "BadRequest", "Idempotency-Key header is required", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		respondErrorBody(w, http.StatusBadRequest, "BadRequest", "failed to read request body", nil)
		return
	}
	req, err := decodeAddItem(body)
	if err != nil {
		respondErrorBody(w, http.StatusBadRequest, "BadRequest", "invalid request body: "+err.Error(), nil)
		return
	}

	version, err := h.service.Scan(r.Context(), cartID, req.SKU, req.Quantity, idempotencyKey)
	if err != nil {
		var conflict *cart.VersionConflictError
		if errors.As(err, &conflict) {
			version, err = h.service.Scan(r.Context(), cartID, req.SKU, req.Quantity, idempotencyKey)
		}
		if err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("cartId", func(e *jx.Encoder) { e.Str(cartID) })
		e.Field("version", func(e *jx.Encoder) { e.Int64(version) })
	})
	respondJSON(w, http.StatusCreated, e)
}

// getTotal handles GET /api/carts/{cartID}/total.
func (h *Handler) getTotal(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.GetTotal(r.Context(), r.PathValue("cartID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, encodeBreakdown(breakdown))
}

func encodeBreakdown(b *pricing.Breakdown) *jx.Encoder {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("lineItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range b.LineItems {
					e.Obj(func(e *jx.Encoder) {
						e.Field("sku", func(e *jx.Encoder) { e.Str(string(li.SKU)) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.Str(li.UnitPrice.String()) })
						e.Field("subtotalBeforePromo", func(e *jx.Encoder) { e.Str(li.SubtotalBeforePromo.String()) })
						e.Field("subtotalAfterPromo", func(e *jx.Encoder) { e.Str(li.SubtotalAfterPromo.String()) })
					})
				}
			})
		})
		e.Field("adjustments", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, adj := range b.Adjustments {
					e.Obj(func(e *jx.Encoder) {
						e.Field("promoId", func(e *jx.Encoder) { e.Str(adj.PromoID) })
						e.Field("sku", func(e *jx.Encoder) { e.Str(string(adj.SKU)) })
						e.Field("type", func(e *jx.Encoder) { e.Str(adj.Kind) })
						e.Field("amount", func(e *jx.Encoder) { e.Str(adj.Amount.String()) })
						e.Field("description", func(e *jx.Encoder) { e.Str(adj.Description) })
					})
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Str(b.Total.String()) })
		e.Field("priceTimestamp", func(e *jx.Encoder) { e.Str(b.PriceTimestamp.UTC().Format(time.RFC3339Nano)) })
	})
	return e
}
