package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// Selection is what the customer picked in the booking wizard.
type Selection struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type CustomerDetails struct {
	CustomerID string `json:"customer_id,omitempty"`
	Name       string `json:"customer_name"`
	Email      string `json:"customer_email"`
	Phone      string `json:"customer_phone"`
	Notes      string `json:"notes,omitempty"`
}

// Draft is a booking that has been built and validated but not committed.
type Draft struct {
	ID              string                 `json:"id"`
	BusinessID      string                 `json:"business_id"`
	ServiceID       string                 `json:"service_id"`
	CustomerID      string                 `json:"customer_id,omitempty"`
	CustomerName    string                 `json:"customer_name"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerPhone   string                 `json:"customer_phone"`
	Notes           string                 `json:"notes,omitempty"`
	Date            availability.CivilDate `json:"date"`
	Time            availability.TimeOfDay `json:"time"`
	DurationMinutes int                    `json:"duration_minutes"`
	Status          Status                 `json:"status"`
	PaymentStatus   PaymentStatus          `json:"payment_status"`
	PaymentAmount   decimal.Decimal        `json:"payment_amount"`
}

// Booking is a committed draft. StartsAt is the slot resolved in the
// business time zone at creation.
type Booking struct {
	Draft
	StartsAt        time.Time `json:"starts_at"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	PaymentAttempts int       `json:"payment_attempts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (b Booking) EndsAt() time.Time {
	return b.StartsAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

func (b Booking) Interval() availability.Interval {
	return availability.Interval{Start: b.StartsAt, End: b.EndsAt()}
}

// BuildBookingRecord assembles a pending, unpaid draft from the wizard
// input. Every empty required field is reported in one MissingFieldsError.
// The service price is copied so later price changes do not affect it.
func BuildBookingRecord(sel Selection, customer CustomerDetails, service model.Service) (Draft, error) {
	required := []struct {
		name  string
		value string
	}{
		{"service_id", sel.ServiceID},
		{"date", sel.Date},
		{"time", sel.Time},
		{"customer_name", customer.Name},
		{"customer_email", customer.Email},
		{"customer_phone", customer.Phone},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Draft{}, &MissingFieldsError{Fields: missing}
	}

	date, err := availability.ParseDate(strings.TrimSpace(sel.Date))
	if err != nil {
		return Draft{}, err
	}
	at, err := availability.ParseTimeOfDay(sel.Time)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %w", availability.ErrSlotUnavailable, err)
	}
	if strings.TrimSpace(sel.ServiceID) != service.ID {
		return Draft{}, fmt.Errorf("%w: selected %s, loaded %s", ErrServiceMismatch, sel.ServiceID, service.ID)
	}

	return Draft{
		ID:              uuid.NewString(),
		BusinessID:      service.BusinessID,
		ServiceID:       service.ID,
		CustomerID:      strings.TrimSpace(customer.CustomerID),
		CustomerName:    strings.TrimSpace(customer.Name),
		CustomerEmail:   strings.TrimSpace(customer.Email),
		CustomerPhone:   strings.TrimSpace(customer.Phone),
		Notes:           strings.TrimSpace(customer.Notes),
		Date:            date,
		Time:            at,
		DurationMinutes: service.DurationMinutes,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		PaymentAmount:   service.Price,
	}, nil
}

// ListFilter narrows booking listings. Empty fields do not filter.
type ListFilter struct {
	BusinessID string
	CustomerID string
	Status     Status
	From       availability.CivilDate
	To         availability.CivilDate
	Limit      int
}
