package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Outcome is a provider event translated to a payment status. Relevant is
// false for event types that do not affect bookings.
type Outcome struct {
	EventID   string
	EventType string
	IntentID  string
	Status    booking.PaymentStatus
	Relevant  bool
}

// ParseWebhook verifies the Stripe-Signature header and maps the event.
func ParseWebhook(body []byte, signature, secret string, tolerance time.Duration) (Outcome, error) {
	evt, err := webhook.ConstructEventWithTolerance(body, signature, secret, tolerance)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Outcome{EventID: evt.ID, EventType: string(evt.Type)}

	switch out.EventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return Outcome{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Status = booking.PaymentUnpaid
		if out.EventType == "payment_intent.succeeded" {
			out.Status = booking.PaymentPaid
		}
		out.Relevant = out.IntentID != ""

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return Outcome{}, fmt.Errorf("decode charge: %w", err)
		}
		if ch.PaymentIntent != nil && ch.Refunded {
			out.IntentID = ch.PaymentIntent.ID
			out.Status = booking.PaymentRefunded
			out.Relevant = true
		}
	}
	return out, nil
}
