package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
)

type reviewRequest struct {
	BusinessID string `json:"business_id"`
	BookingID  string `json:"booking_id" validate:"omitempty,uuid"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment" validate:"max=2000"`
}

type reviewsResponse struct {
	BusinessID    string           `json:"business_id"`
	AverageRating string           `json:"average_rating"`
	Count         int              `json:"count"`
	Reviews       []booking.Review `json:"reviews"`
}

// ListReviews returns the published reviews of a business with their average.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing query parameters", "missing_field", []string{"business_id"})
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	items, err := h.ReviewStore.ListReviews(r.Context(), businessID, limit)
	if err != nil {
		h.writeError(w, r, "list reviews", err)
		return
	}
	if items == nil {
		items = []booking.Review{}
	}
	avg, n := booking.AverageRating(items)
	httpx.WriteJSON(w, http.StatusOK, reviewsResponse{
		BusinessID:    businessID,
		AverageRating: avg.StringFixed(1),
		Count:         n,
		Reviews:       items,
	})
}

// SubmitReview records a review by the calling customer.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badJSON(w)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "submit review", err)
		return
	}
	rv, err := booking.NewReview(req.BusinessID, p.UserID, req.BookingID, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, r, "submit review", err)
		return
	}
	created, err := h.ReviewStore.CreateReview(r.Context(), rv)
	if err != nil {
		h.writeError(w, r, "submit review", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}
