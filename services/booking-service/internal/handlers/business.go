package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

type registerBusinessRequest struct {
	Name     string                      `json:"name" validate:"required,max=200"`
	Category string                      `json:"category" validate:"omitempty,oneof=health beauty fitness professional other"`
	Timezone string                      `json:"timezone" validate:"omitempty,timezone"`
	Hours    *availability.BusinessHours `json:"hours"`
}

type hoursRequest struct {
	Hours *availability.BusinessHours `json:"hours" validate:"required"`
}

type serviceRequest struct {
	ID              string          `json:"id"`
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=2000"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Price           decimal.Decimal `json:"price"`
	IsAvailable     *bool           `json:"is_available"`
}

type businessStatusRequest struct {
	BusinessID string `json:"business_id" validate:"required,uuid"`
	Status     string `json:"status" validate:"required,oneof=pending active inactive"`
}

func decodeHoursError(w http.ResponseWriter, err error) bool {
	if errors.Is(err, availability.ErrInvalidHours) || errors.Is(err, availability.ErrInvalidTime) {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_hours", []string{"hours"})
		return true
	}
	return false
}

// Business registers a business for the caller (POST) or returns one of
// theirs (GET, optionally picked by business_id). New businesses wait in
// pending status until an admin approves them.
func (h *Handler) Business(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		biz, err := h.ownedBusiness(r.Context(), p, r.URL.Query().Get("business_id"))
		if err != nil {
			h.writeError(w, r, "get business", err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, biz)
	case http.MethodPost:
		h.registerBusiness(w, r, p)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) registerBusiness(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req registerBusinessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		if !decodeHoursError(w, err) {
			badJSON(w)
		}
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.Timezone = strings.TrimSpace(req.Timezone)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "register business", err)
		return
	}

	b := model.Business{
		OwnerID:  p.UserID,
		Name:     req.Name,
		Category: model.Category(req.Category),
		Timezone: req.Timezone,
		Hours:    availability.ClosedWeek(),
	}
	if b.Category == "" {
		b.Category = model.CategoryOther
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}
	if req.Hours != nil {
		if err := req.Hours.Validate(); err != nil {
			h.writeError(w, r, "register business", err)
			return
		}
		b.Hours = *req.Hours
	}

	ctx := r.Context()
	created, err := h.CatalogStore.CreateBusiness(ctx, b, h.settings(ctx).MaxBusinessesPerUser)
	if err != nil {
		h.writeError(w, r, "register business", err)
		return
	}
	h.Logger.Info("business registered", "business_id", created.ID, "owner_id", created.OwnerID)
	httpx.WriteJSON(w, http.StatusCreated, created)
}

// Hours reads or replaces the weekly opening hours of the caller's business.
// Owners of several businesses pick one with business_id.
func (h *Handler) Hours(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	ctx := r.Context()
	biz, err := h.ownedBusiness(ctx, p, r.URL.Query().Get("business_id"))
	if err != nil {
		h.writeError(w, r, "business hours", err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"business_id": biz.ID, "hours": biz.Hours})
	case http.MethodPut:
		var req hoursRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			if !decodeHoursError(w, err) {
				badJSON(w)
			}
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.writeError(w, r, "business hours", err)
			return
		}
		if err := req.Hours.Validate(); err != nil {
			h.writeError(w, r, "business hours", err)
			return
		}
		updated, err := h.CatalogStore.UpdateHours(ctx, biz.ID, *req.Hours)
		if err != nil {
			h.writeError(w, r, "business hours", err)
			return
		}
		h.invalidate(ctx, biz.ID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"business_id": updated.ID, "hours": updated.Hours})
	default:
		methodNotAllowed(w)
	}
}

// Services lists (GET), adds (POST) or edits (PUT) the caller's services.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	ctx := r.Context()
	biz, err := h.ownedBusiness(ctx, p, r.URL.Query().Get("business_id"))
	if err != nil {
		h.writeError(w, r, "services", err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		items, err := h.CatalogStore.ListServices(ctx, biz.ID, false)
		if err != nil {
			h.writeError(w, r, "services", err)
			return
		}
		if items == nil {
			items = []model.Service{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": items})
	case http.MethodPost, http.MethodPut:
		var req serviceRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badJSON(w)
			return
		}
		req.ID = strings.TrimSpace(req.ID)
		req.Name = strings.TrimSpace(req.Name)
		req.Description = strings.TrimSpace(req.Description)
		if err := h.validate.Struct(req); err != nil {
			h.writeError(w, r, "services", err)
			return
		}
		svc := model.Service{
			ID:              req.ID,
			BusinessID:      biz.ID,
			Name:            req.Name,
			Description:     req.Description,
			DurationMinutes: req.DurationMinutes,
			Price:           req.Price,
			IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
		}
		if err := svc.Validate(); err != nil {
			h.writeError(w, r, "services", err)
			return
		}

		var saved model.Service
		status := http.StatusOK
		if r.Method == http.MethodPost {
			saved, err = h.CatalogStore.CreateService(ctx, svc, h.settings(ctx).MaxServicesPerBusiness)
			status = http.StatusCreated
		} else {
			if svc.ID == "" {
				httpx.WriteError(w, http.StatusBadRequest, "missing required fields", "missing_field", []string{"id"})
				return
			}
			saved, err = h.CatalogStore.UpdateService(ctx, svc)
		}
		if err != nil {
			h.writeError(w, r, "services", err)
			return
		}
		h.invalidate(ctx, biz.ID)
		httpx.WriteJSON(w, status, saved)
	default:
		methodNotAllowed(w)
	}
}

// AdminBusinessStatus approves, suspends or reopens a business.
func (h *Handler) AdminBusinessStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req businessStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badJSON(w)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "business status", err)
		return
	}
	updated, err := h.CatalogStore.SetBusinessStatus(r.Context(), req.BusinessID, model.BusinessStatus(req.Status))
	if err != nil {
		h.writeError(w, r, "business status", err)
		return
	}
	h.invalidate(r.Context(), updated.ID)
	h.Logger.Info("business status changed", "business_id", updated.ID, "status", updated.Status)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) invalidate(ctx context.Context, businessID string) {
	if h.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.Cache.Invalidate(ctx, businessID); err != nil {
		h.Logger.Warn("catalog cache invalidation failed", "err", err, "business_id", businessID)
	}
}
