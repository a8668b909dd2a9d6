package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidService = errors.New("invalid service")

// Service is a bookable offering of one business. Price is captured into a
// booking at creation and never read live afterwards.
type Service struct {
	ID              string          `json:"id"`
	BusinessID      string          `json:"business_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	IsAvailable     bool            `json:"is_available"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Validate checks the invariants enforced on every write. The message names
// the first offending field.
func (s Service) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return errors.Join(ErrInvalidService, errors.New("name is required"))
	case s.DurationMinutes <= 0:
		return errors.Join(ErrInvalidService, errors.New("duration_minutes must be positive"))
	case s.DurationMinutes > 24*60:
		return errors.Join(ErrInvalidService, errors.New("duration_minutes must fit in a day"))
	case s.Price.IsNegative():
		return errors.Join(ErrInvalidService, errors.New("price must not be negative"))
	}
	return nil
}
