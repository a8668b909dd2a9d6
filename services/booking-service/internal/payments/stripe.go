package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

var ErrNotConfigured = errors.New("payments provider not configured")

type IntentRequest struct {
	BookingID     string
	BusinessID    string
	CustomerEmail string
	Amount        decimal.Decimal
	Currency      string
	// Attempt numbers the booking's payment attempts from 1. A retry of the
	// same attempt reuses its idempotency key; a new attempt gets a new one.
	Attempt        int
	CommissionRate float64
}

// IdempotencyKey identifies one payment attempt of a booking.
func (r IntentRequest) IdempotencyKey() string {
	attempt := r.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return fmt.Sprintf("intent:%s:%d", r.BookingID, attempt)
}

type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount"`
	Currency     string `json:"currency"`
	PlatformFee  int64  `json:"platform_fee"`
}

// StripeProvider creates PaymentIntents and refunds through the Stripe API.
// Requests carry idempotency keys derived from the booking id so client
// retries never create a second charge.
type StripeProvider struct {
	intents *paymentintent.Client
	refunds *refund.Client
}

func NewStripeProvider(secretKey string) *StripeProvider {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeProvider{
		intents: &paymentintent.Client{B: backend, Key: secretKey},
		refunds: &refund.Client{B: backend, Key: secretKey},
	}
}

func (p *StripeProvider) configured() bool {
	return p != nil && strings.TrimSpace(p.intents.Key) != ""
}

func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if !p.configured() {
		return Intent{}, ErrNotConfigured
	}
	currency := strings.ToLower(req.Currency)
	minor := MinorUnits(req.Amount, currency)
	if minor <= 0 {
		return Intent{}, fmt.Errorf("booking %s has nothing to charge", req.BookingID)
	}
	fee := PlatformFee(minor, req.CommissionRate)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.IdempotencyKey())
	params.AddMetadata("booking_id", req.BookingID)
	params.AddMetadata("business_id", req.BusinessID)
	params.AddMetadata("platform_fee", strconv.FormatInt(fee, 10))

	pi, err := p.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		PlatformFee:  fee,
	}, nil
}

// Refund returns the full charge of intentID. The booking moves to refunded
// when the charge.refunded webhook arrives.
func (p *StripeProvider) Refund(ctx context.Context, bookingID, intentID string) error {
	if !p.configured() {
		return ErrNotConfigured
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("refund:" + bookingID)
	params.AddMetadata("booking_id", bookingID)
	if _, err := p.refunds.New(params); err != nil {
		return fmt.Errorf("refund payment intent %s: %w", intentID, err)
	}
	return nil
}

// IntentOutcome reports the payment status a provider-side intent implies.
// settled is false while the customer can still complete the payment.
func (p *StripeProvider) IntentOutcome(ctx context.Context, intentID string) (status booking.PaymentStatus, settled bool, err error) {
	if !p.configured() {
		return "", false, ErrNotConfigured
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.intents.Get(intentID, params)
	if err != nil {
		return "", false, fmt.Errorf("fetch payment intent %s: %w", intentID, err)
	}
	switch {
	case pi.Status == stripe.PaymentIntentStatusSucceeded:
		return booking.PaymentPaid, true, nil
	case pi.Status == stripe.PaymentIntentStatusCanceled:
		return booking.PaymentUnpaid, true, nil
	case pi.Status == stripe.PaymentIntentStatusRequiresPaymentMethod && pi.LastPaymentError != nil:
		return booking.PaymentUnpaid, true, nil
	}
	return "", false, nil
}
