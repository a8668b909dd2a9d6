package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
)

// StripeWebhook applies payment outcomes. The signature is the only
// authentication; replayed events are dropped through the inbox. A charge
// that succeeds after its booking was cancelled is refunded.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if strings.TrimSpace(h.WebhookSecret) == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "stripe webhook not configured", "payments_disabled", nil)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing Stripe-Signature header", "invalid_signature", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "failed to read request body", "invalid_json", nil)
		return
	}

	out, err := payments.ParseWebhook(body, sig, h.WebhookSecret, h.WebhookTolerance)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid signature", "invalid_signature", nil)
			return
		}
		h.Logger.Warn("stripe event payload rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid event payload", "invalid_json", nil)
		return
	}
	h.Logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", out.EventID,
		"event_type", out.EventType,
	)
	if !out.Relevant {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	ctx := r.Context()
	fresh, err := h.Inbox.Record(ctx, out.EventID, out.EventType)
	if err != nil {
		h.writeError(w, r, "stripe webhook", err)
		return
	}
	if !fresh {
		h.Logger.Info("payment provider event duplicate ignored", "provider_event_id", out.EventID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
		return
	}

	b, err := h.Bookings.UpdatePaymentStatusByIntent(ctx, out.IntentID, out.Status)
	switch {
	case err == nil:
		h.Logger.Info("booking payment status changed", "booking_id", b.ID, "payment_status", b.PaymentStatus)
		h.refundIfCancelled(ctx, b)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrIllegalTransition):
		// Acknowledged so the provider stops retrying an event that can never apply.
		h.Logger.Warn("payment event not applied", "err", err, "payment_intent_id", out.IntentID, "event_type", out.EventType)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "skipped"})
	default:
		if ferr := h.Inbox.Forget(ctx, out.EventID); ferr != nil {
			h.Logger.Error("inbox forget failed", "err", ferr, "provider_event_id", out.EventID)
		}
		h.writeError(w, r, "stripe webhook", err)
	}
}
