package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Review struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	CustomerID  string    `json:"customer_id"`
	BookingID   string    `json:"booking_id,omitempty"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewReview builds a published review. The booking link is optional.
func NewReview(businessID, customerID, bookingID string, rating int, comment string) (Review, error) {
	var missing []string
	if strings.TrimSpace(businessID) == "" {
		missing = append(missing, "business_id")
	}
	if strings.TrimSpace(customerID) == "" {
		missing = append(missing, "customer_id")
	}
	if len(missing) > 0 {
		return Review{}, &MissingFieldsError{Fields: missing}
	}
	if rating < 1 || rating > 5 {
		return Review{}, ErrInvalidRating
	}
	return Review{
		ID:          uuid.NewString(),
		BusinessID:  strings.TrimSpace(businessID),
		CustomerID:  strings.TrimSpace(customerID),
		BookingID:   strings.TrimSpace(bookingID),
		Rating:      rating,
		Comment:     strings.TrimSpace(comment),
		IsPublished: true,
	}, nil
}

// CheckReviewEligible requires the linked booking to be completed and to
// belong to the reviewing customer and the reviewed business.
func CheckReviewEligible(b Booking, r Review) error {
	if b.Status != StatusCompleted || b.CustomerID != r.CustomerID || b.BusinessID != r.BusinessID {
		return ErrReviewNotEligible
	}
	return nil
}

// AverageRating returns the mean of published ratings rounded to one decimal.
func AverageRating(reviews []Review) (decimal.Decimal, int) {
	var sum, n int64
	for _, r := range reviews {
		if !r.IsPublished {
			continue
		}
		sum += int64(r.Rating)
		n++
	}
	if n == 0 {
		return decimal.Zero, 0
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)).Round(1), int(n)
}
