package httpx

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/catalog"
)

type CatalogHandler struct {
	Store *catalog.Store
	Log   *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/car-parts", h.list)
	r.Post("/car-parts", h.create)
	r.Get("/car-parts/{id}", h.get)
	r.Put("/car-parts/{id}", h.update)
	r.Delete("/car-parts/{id}", h.delete)
}

// RegisterExport mounts the CSV export; the original API serves it outside
// the authenticated group.
func (h *CatalogHandler) RegisterExport(r chi.Router) {
	r.Get("/car-parts/export", h.export)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	f := catalog.Filter{Category: q.Get("category")}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	// Price filters arrive as decimals ("12.50") and apply only as a pair.
	if minStr, maxStr := q.Get("min_price"), q.Get("max_price"); minStr != "" && maxStr != "" {
		f.MinPriceCents = parsePriceCents(minStr)
		f.MaxPriceCents = parsePriceCents(maxStr)
	}

	parts, err := h.Store.List(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if parts == nil {
		parts = []catalog.Part{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": parts})
}

type partCreateReq struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	StockQty   int    `json:"stock_quantity"`
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req partCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if req.Name == "" || req.Category == "" || req.PriceCents < 0 || req.StockQty < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: "name, category, non-negative price and stock are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Create(ctx, req.Name, req.Category, req.PriceCents, req.StockQty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type partUpdateReq struct {
	Name       *string `json:"name"`
	Category   *string `json:"category"`
	PriceCents *int64  `json:"price_cents"`
	StockQty   *int    `json:"stock_quantity"`
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	var req partUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if (req.PriceCents != nil && *req.PriceCents < 0) || (req.StockQty != nil && *req.StockQty < 0) {
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: "price and stock must be non-negative"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Update(ctx, chi.URLParam(r, "id"), catalog.PartUpdate{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		StockQty:   req.StockQty,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "car part deleted"})
}

func (h *CatalogHandler) export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	parts, err := h.Store.All(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="car_parts.csv"`)
	if err := catalog.WriteCSV(w, parts); err != nil {
		h.Log.Error("csv export failed", zap.Error(err))
	}
}

func parsePriceCents(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Round(f * 100))
}
