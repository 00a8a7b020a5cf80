package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hendraw/partshub/internal/auth"
	"github.com/hendraw/partshub/internal/catalog"
	"github.com/hendraw/partshub/internal/checkout"
	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/payments"
	"github.com/hendraw/partshub/internal/postgres"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// writeError maps the workflow error taxonomy onto HTTP statuses.
// Validation-shaped rejections carry structured detail; everything
// unclassified is a bare 500.
func writeError(w http.ResponseWriter, err error) {
	var stockErr *orders.InsufficientStockError
	var partErr *orders.PartNotFoundError
	var transErr *orders.InvalidTransitionError

	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{
			Error: "insufficient_stock",
			Detail: map[string]any{
				"part_name": stockErr.PartName,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			},
		})
	case errors.As(err, &partErr):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{
			Error:  "part_not_found",
			Detail: map[string]any{"part_id": partErr.PartID},
		})
	case errors.As(err, &transErr):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{
			Error:  "invalid_status_transition",
			Detail: map[string]any{"from": transErr.From, "to": transErr.To},
		})
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQty),
		errors.Is(err, payments.ErrEmptyOrder),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: err.Error()})
	case errors.Is(err, payments.ErrOrderCompleted):
		writeJSON(w, http.StatusConflict, errBody{Error: "order_already_completed"})
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, payments.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: "not_found"})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrTokenInvalid):
		writeJSON(w, http.StatusUnauthorized, errBody{Error: "unauthenticated"})
	case errors.Is(err, checkout.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid_signature"})
	case errors.Is(err, payments.ErrGateway):
		writeJSON(w, http.StatusBadGateway, errBody{Error: "gateway_unavailable"})
	case postgres.IsConflict(err):
		writeJSON(w, http.StatusConflict, errBody{Error: "conflict_retry_later"})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal_error"})
	}
}
