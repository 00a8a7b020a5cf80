package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/checkout"
	"github.com/hendraw/partshub/internal/payments"
)

type PaymentsHandler struct {
	Workflow *payments.Workflow
	Log      *zap.Logger
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/orders/{id}/create-payment-link", h.createLink)
	r.Post("/orders/{id}/validate-payment", h.validate)
}

// RegisterWebhook mounts the receiver outside the authenticated group; the
// provider authenticates with its signature header instead.
func (h *PaymentsHandler) RegisterWebhook(r chi.Router) {
	r.Post("/stripe/webhook", h.webhook)
}

func (h *PaymentsHandler) createLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	link, err := h.Workflow.CreateLink(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *PaymentsHandler) validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	conf, err := h.Workflow.Verify(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "unreadable payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err = h.Workflow.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, checkout.ErrInvalidSignature):
		// Terminal rejection: redelivering the same payload cannot help.
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid_signature"})
	case err != nil:
		// Transient: a 5xx engages the provider's retry mechanism.
		h.Log.Error("webhook processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal_error"})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
