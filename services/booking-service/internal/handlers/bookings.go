package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
)

type createBookingRequest struct {
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name" validate:"max=200"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=254"`
	CustomerPhone string `json:"customer_phone" validate:"max=32"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type statusRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}

type paymentIntentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type paymentIntentResponse struct {
	BookingID string `json:"booking_id"`
	payments.Intent
}

// CreateBooking builds a booking from the wizard input, re-validates the
// slot against a fresh catalog snapshot and commits it. The database rejects
// a concurrent booking of the same slot with a conflict.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badJSON(w)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)

	sel := booking.Selection{ServiceID: req.ServiceID, Date: req.Date, Time: req.Time}
	customer := booking.CustomerDetails{
		CustomerID: p.UserID,
		Name:       req.CustomerName,
		Email:      req.CustomerEmail,
		Phone:      req.CustomerPhone,
		Notes:      req.Notes,
	}
	if fields := missingBookingFields(req, sel, customer); len(fields) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "missing required fields", "missing_field", fields)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "create booking", err)
		return
	}

	ctx := r.Context()
	snap, err := h.Catalog.Fresh(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		h.writeError(w, r, "create booking", err)
		return
	}
	if !snap.Business.AcceptsBookings() {
		h.writeError(w, r, "create booking", catalog.ErrNotFound)
		return
	}
	if !snap.Service.IsAvailable {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "service is not currently offered", "service_unavailable", []string{"service_id"})
		return
	}

	draft, err := booking.BuildBookingRecord(sel, customer, snap.Service)
	if err != nil {
		h.writeError(w, r, "create booking", err)
		return
	}
	b, err := h.validateSlot(snap, draft, h.settings(ctx))
	if err != nil {
		h.writeError(w, r, "create booking", err)
		return
	}

	created, replayed, err := h.Bookings.CreateBooking(ctx, b, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.writeError(w, r, "create booking", err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	} else {
		h.Logger.Info("booking created",
			"booking_id", created.ID,
			"business_id", created.BusinessID,
			"service_id", created.ServiceID,
			"starts_at", created.StartsAt,
		)
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

// missingBookingFields reports every absent field before anything is loaded.
func missingBookingFields(req createBookingRequest, sel booking.Selection, customer booking.CustomerDetails) []string {
	var fields []string
	if req.BusinessID == "" {
		fields = append(fields, "business_id")
	}
	_, err := booking.BuildBookingRecord(sel, customer, model.Service{ID: sel.ServiceID})
	var missing *booking.MissingFieldsError
	if errors.As(err, &missing) {
		fields = append(fields, missing.Fields...)
	}
	return fields
}

// validateSlot runs the authoritative checks for draft in the business time
// zone and returns the booking ready to commit.
func (h *Handler) validateSlot(snap catalog.Snapshot, draft booking.Draft, settings config.PlatformSettings) (booking.Booking, error) {
	loc, err := snap.Business.Location()
	if err != nil {
		return booking.Booking{}, err
	}
	now := h.Clock.Now()
	today := availability.TodayIn(h.Clock, loc)
	if err := availability.CheckHorizon(draft.Date, today, settings.MaxAdvanceBookingDays); err != nil {
		return booking.Booking{}, err
	}
	if err := availability.ValidateBookingRequest(snap.Business.Hours, snap.Service, draft.Date, draft.Time, today); err != nil {
		return booking.Booking{}, err
	}
	start, err := availability.ValidateStart(draft.Date, draft.Time, loc, now)
	if err != nil {
		return booking.Booking{}, err
	}
	return booking.Booking{Draft: draft, StartsAt: start, Currency: settings.Currency}, nil
}

// ListBookings returns the caller's bookings: customers see their own,
// business owners those of one of their businesses, admins any business or
// customer by query. Other roles are refused.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	var f booking.ListFilter
	switch booking.Role(p.Role) {
	case booking.RoleCustomer:
		f.CustomerID = p.UserID
	case booking.RoleBusiness:
		biz, err := h.ownedBusiness(r.Context(), p, q.Get("business_id"))
		if err != nil {
			h.writeError(w, r, "list bookings", err)
			return
		}
		f.BusinessID = biz.ID
	case booking.RoleAdmin:
		f.BusinessID = strings.TrimSpace(q.Get("business_id"))
		f.CustomerID = strings.TrimSpace(q.Get("customer_id"))
		if f.BusinessID == "" && f.CustomerID == "" {
			httpx.WriteError(w, http.StatusBadRequest, "business_id or customer_id required", "missing_field", []string{"business_id"})
			return
		}
	default:
		h.writeError(w, r, "list bookings", booking.ErrForbidden)
		return
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		f.Status = booking.Status(raw)
		if !f.Status.Valid() {
			httpx.WriteError(w, http.StatusBadRequest, "unknown status", "invalid_field", []string{"status"})
			return
		}
	}
	for name, dst := range map[string]*availability.CivilDate{"from": &f.From, "to": &f.To} {
		if raw := strings.TrimSpace(q.Get(name)); raw != "" {
			d, err := availability.ParseDate(raw)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err.Error(), "invalid_field", []string{name})
				return
			}
			*dst = d
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			f.Limit = n
		}
	}

	items, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "list bookings", err)
		return
	}
	if items == nil {
		items = []booking.Booking{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": items})
}

// UpdateBookingStatus moves a booking through its lifecycle. Customers may
// only cancel their own bookings and only outside the notice period.
// Cancelling a paid booking requests a refund from the provider; a payment
// still pending is refunded when its success arrives.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badJSON(w)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "update booking status", err)
		return
	}
	to := booking.Status(req.Status)
	role := booking.Role(p.Role)
	if err := booking.Authorize(role, to); err != nil {
		h.writeError(w, r, "update booking status", err)
		return
	}

	ctx := r.Context()
	check, err := h.ownershipCheck(ctx, p)
	if err != nil {
		h.writeError(w, r, "update booking status", err)
		return
	}
	if role == booking.RoleCustomer {
		owned := check
		now := h.Clock.Now()
		notice := h.settings(ctx).MinCancellationNotice()
		check = func(b booking.Booking) error {
			if err := owned(b); err != nil {
				return err
			}
			return booking.CheckCancellationNotice(b.StartsAt, now, notice)
		}
	}

	updated, err := h.Bookings.UpdateStatus(ctx, req.BookingID, to, check)
	if err != nil {
		h.writeError(w, r, "update booking status", err)
		return
	}
	h.Logger.Info("booking status changed", "booking_id", updated.ID, "status", updated.Status, "role", p.Role)

	h.refundIfCancelled(ctx, updated)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

// refundIfCancelled returns the charge of a cancelled booking that ended up
// paid. Failures are logged; the provider's refund can be retried by an admin.
func (h *Handler) refundIfCancelled(ctx context.Context, b booking.Booking) {
	if !payments.NeedsRefund(b) || h.Payments == nil {
		return
	}
	if err := h.Payments.Refund(ctx, b.ID, b.PaymentIntentID); err != nil {
		h.Logger.Error("refund request failed", "err", err, "booking_id", b.ID)
		return
	}
	h.Logger.Info("refund requested", "booking_id", b.ID, "payment_intent_id", b.PaymentIntentID)
}

// CreatePaymentIntent starts payment of a booking's captured amount. A retry
// for a booking whose payment is already pending returns the same intent;
// after a failed or cancelled intent a new attempt gets a new one.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if h.Payments == nil {
		h.writeError(w, r, "create payment intent", payments.ErrNotConfigured)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	var req paymentIntentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badJSON(w)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, "create payment intent", err)
		return
	}

	ctx := r.Context()
	check, err := h.ownershipCheck(ctx, p)
	if err != nil {
		h.writeError(w, r, "create payment intent", err)
		return
	}
	payable := func(b booking.Booking) error {
		if err := check(b); err != nil {
			return err
		}
		if b.Status == booking.StatusCancelled {
			return fmt.Errorf("%w: booking %s is cancelled", booking.ErrIllegalTransition, b.ID)
		}
		return booking.PaymentTransition(b.PaymentStatus, booking.PaymentPending)
	}

	b, err := h.Bookings.Get(ctx, req.BookingID)
	if err != nil {
		h.writeError(w, r, "create payment intent", err)
		return
	}
	retry := b.PaymentStatus == booking.PaymentPending && b.PaymentIntentID != ""
	attempt := b.PaymentAttempts + 1
	if retry {
		attempt = max(b.PaymentAttempts, 1)
		err = check(b)
	} else {
		err = payable(b)
	}
	if err != nil {
		h.writeError(w, r, "create payment intent", err)
		return
	}

	intent, err := h.Payments.CreateIntent(ctx, payments.IntentRequest{
		BookingID:      b.ID,
		BusinessID:     b.BusinessID,
		CustomerEmail:  b.CustomerEmail,
		Amount:         b.PaymentAmount,
		Currency:       b.Currency,
		Attempt:        attempt,
		CommissionRate: h.settings(ctx).CommissionRate,
	})
	if err != nil {
		h.writeError(w, r, "create payment intent", err)
		return
	}
	if !retry {
		if _, err := h.Bookings.AttachPaymentIntent(ctx, b.ID, intent.ID, payable); err != nil {
			h.writeError(w, r, "create payment intent", err)
			return
		}
		h.Logger.Info("payment intent attached", "booking_id", b.ID, "payment_intent_id", intent.ID, "attempt", attempt)
	}
	httpx.WriteJSON(w, http.StatusOK, paymentIntentResponse{BookingID: b.ID, Intent: intent})
}

// ownershipCheck returns a predicate that accepts only bookings the
// principal may act on.
func (h *Handler) ownershipCheck(ctx context.Context, p auth.Principal) (func(booking.Booking) error, error) {
	switch booking.Role(p.Role) {
	case booking.RoleAdmin:
		return func(booking.Booking) error { return nil }, nil
	case booking.RoleBusiness:
		owned, err := h.CatalogStore.BusinessesByOwner(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]bool, len(owned))
		for _, biz := range owned {
			ids[biz.ID] = true
		}
		return func(b booking.Booking) error {
			if !ids[b.BusinessID] {
				return booking.ErrNotFound
			}
			return nil
		}, nil
	case booking.RoleCustomer:
		return func(b booking.Booking) error {
			if b.CustomerID != p.UserID {
				return booking.ErrNotFound
			}
			return nil
		}, nil
	}
	return nil, booking.ErrForbidden
}

// ownedBusiness picks the caller's business named by businessID, or their
// oldest one when businessID is empty.
func (h *Handler) ownedBusiness(ctx context.Context, p auth.Principal, businessID string) (model.Business, error) {
	owned, err := h.CatalogStore.BusinessesByOwner(ctx, p.UserID)
	if err != nil {
		return model.Business{}, err
	}
	businessID = strings.TrimSpace(businessID)
	for _, biz := range owned {
		if businessID == "" || biz.ID == businessID {
			return biz, nil
		}
	}
	return model.Business{}, catalog.ErrNotFound
}
