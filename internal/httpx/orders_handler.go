package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/redisx"
)

type OrdersHandler struct {
	Placement *orders.Placement
	Store     *orders.Store
	Redis     *redis.Client
	Log       *zap.Logger
}

type CreateOrderReq struct {
	Items []orders.ItemRequest `json:"items"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.status)
	r.Post("/orders/{id}/update-status", h.updateStatus)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Placement.Place(ctx, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusCreated, orderResponse(order))
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	out, err := h.Store.List(ctx, page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(out))
	for i := range out {
		resp = append(resp, orderResponse(&out[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(order))
}

// status serves from the Redis cache first and falls back to Postgres.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(s))
			return
		}
	}

	order, err := h.Store.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, map[string]any{"status": order.Status})
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !orders.ValidStatus(req.Status) {
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: "status must be pending, completed or canceled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Store.SetStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, orderResponse(order))
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": st})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

// orderResponse adds the derived total alongside the stored fields.
func orderResponse(o *orders.Order) map[string]any {
	items := o.Items
	if items == nil {
		items = []orders.LineItem{}
	}
	return map[string]any{
		"id":          o.ID,
		"status":      o.Status,
		"items":       items,
		"total_cents": o.TotalCents(),
		"created_at":  o.CreatedAt,
		"updated_at":  o.UpdatedAt,
	}
}
