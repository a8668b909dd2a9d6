package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
	"github.com/pointme/pointme/services/booking-service/internal/storage"
)

// writeError maps domain errors to responses. Anything unrecognised is
// logged and reported as a 500 without details.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var missing *booking.MissingFieldsError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &missing):
		httpx.WriteError(w, http.StatusBadRequest, "missing required fields", "missing_field", missing.Fields)
	case errors.As(err, &invalid):
		fields := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, fe.Field())
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid request fields", "invalid_field", fields)
	case errors.Is(err, booking.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "slot no longer available, please choose another", "conflict", nil)
	case errors.Is(err, booking.ErrIllegalTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "illegal_transition", nil)
	case errors.Is(err, availability.ErrInvalidDate):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_date", []string{"date"})
	case errors.Is(err, availability.ErrInvalidTime):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "slot_unavailable", []string{"time"})
	case errors.Is(err, availability.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "slot_unavailable", []string{"time"})
	case errors.Is(err, availability.ErrBeyondHorizon):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "beyond_horizon", []string{"date"})
	case errors.Is(err, availability.ErrInvalidHours):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_hours", []string{"hours"})
	case errors.Is(err, booking.ErrServiceMismatch):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "service_mismatch", []string{"service_id"})
	case errors.Is(err, booking.ErrInvalidRating):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_rating", []string{"rating"})
	case errors.Is(err, booking.ErrReviewNotEligible):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "review_not_eligible", []string{"booking_id"})
	case errors.Is(err, booking.ErrCancellationNotice):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "cancellation_notice", nil)
	case errors.Is(err, model.ErrInvalidService):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_service", nil)
	case errors.Is(err, storage.ErrServiceInUse):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "service_in_use", []string{"duration_minutes"})
	case errors.Is(err, storage.ErrServiceLimit):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "service_limit", nil)
	case errors.Is(err, storage.ErrBusinessLimit):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "business_limit", nil)
	case errors.Is(err, config.ErrInvalidSettings):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_settings", nil)
	case errors.Is(err, booking.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error(), "forbidden", nil)
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "booking not found", "not_found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "business or service not found", "not_found", nil)
	case errors.Is(err, payments.ErrNotConfigured):
		httpx.WriteError(w, http.StatusNotImplemented, "payments not configured", "payments_disabled", nil)
	default:
		h.Logger.Error(op+" failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error", "internal", nil)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed", nil)
}

func badJSON(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid json body", "invalid_json", nil)
}
