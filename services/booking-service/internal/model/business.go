package model

import (
	"fmt"
	"time"

	"github.com/pointme/pointme/services/booking-service/internal/availability"
)

type BusinessStatus string

const (
	BusinessPending  BusinessStatus = "pending"
	BusinessActive   BusinessStatus = "active"
	BusinessInactive BusinessStatus = "inactive"
)

func (s BusinessStatus) Valid() bool {
	switch s {
	case BusinessPending, BusinessActive, BusinessInactive:
		return true
	}
	return false
}

type Category string

const (
	CategoryHealth       Category = "health"
	CategoryBeauty       Category = "beauty"
	CategoryFitness      Category = "fitness"
	CategoryProfessional Category = "professional"
	CategoryOther        Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryHealth, CategoryBeauty, CategoryFitness, CategoryProfessional, CategoryOther:
		return true
	}
	return false
}

type Business struct {
	ID        string                     `json:"id"`
	OwnerID   string                     `json:"owner_id"`
	Name      string                     `json:"name"`
	Category  Category                   `json:"category"`
	Timezone  string                     `json:"timezone"`
	Status    BusinessStatus             `json:"status"`
	Hours     availability.BusinessHours `json:"hours"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Location resolves the business time zone, defaulting to UTC when unset.
func (b Business) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business %s timezone %q: %w", b.ID, b.Timezone, err)
	}
	return loc, nil
}

func (b Business) AcceptsBookings() bool {
	return b.Status == BusinessActive
}
