package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
)

// publicBusiness is the directory view of a business; owner details stay private.
type publicBusiness struct {
	ID       string                     `json:"id"`
	Name     string                     `json:"name"`
	Category model.Category             `json:"category"`
	Timezone string                     `json:"timezone"`
	Hours    availability.BusinessHours `json:"hours"`
}

type publicServicesResponse struct {
	BusinessID    string          `json:"business_id"`
	AverageRating string          `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	Services      []model.Service `json:"services"`
}

// PublicBusinesses lists active businesses, optionally of one category.
func (h *Handler) PublicBusinesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	f := catalog.BusinessFilter{Category: model.Category(strings.ToLower(strings.TrimSpace(q.Get("category"))))}
	if f.Category != "" && !f.Category.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "unknown category", "invalid_field", []string{"category"})
		return
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			f.Limit = n
		}
	}

	items, err := h.CatalogStore.ListBusinesses(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "public businesses", err)
		return
	}
	out := make([]publicBusiness, 0, len(items))
	for _, b := range items {
		if !b.AcceptsBookings() {
			continue
		}
		out = append(out, publicBusiness{ID: b.ID, Name: b.Name, Category: b.Category, Timezone: b.Timezone, Hours: b.Hours})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"businesses": out})
}

// PublicServices lists the services a business currently offers together
// with its review average.
func (h *Handler) PublicServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q, missing := requireQuery(r, "business_id")
	if len(missing) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "missing query parameters", "missing_field", missing)
		return
	}

	ctx := r.Context()
	biz, err := h.Catalog.Business(ctx, q["business_id"])
	if err != nil {
		h.writeError(w, r, "public services", err)
		return
	}
	if !biz.AcceptsBookings() {
		h.writeError(w, r, "public services", catalog.ErrNotFound)
		return
	}
	services, err := h.CatalogStore.ListServices(ctx, biz.ID, true)
	if err != nil {
		h.writeError(w, r, "public services", err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	reviews, err := h.ReviewStore.ListReviews(ctx, biz.ID, 200)
	if err != nil {
		h.writeError(w, r, "public services", err)
		return
	}
	avg, n := booking.AverageRating(reviews)
	httpx.WriteJSON(w, http.StatusOK, publicServicesResponse{
		BusinessID:    biz.ID,
		AverageRating: avg.StringFixed(1),
		ReviewCount:   n,
		Services:      services,
	})
}
