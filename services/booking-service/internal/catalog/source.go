package catalog

import (
	"context"
	"errors"

	"github.com/pointme/pointme/services/booking-service/internal/model"
)

var ErrNotFound = errors.New("catalog entry not found")

// Snapshot is the business and service state a slot computation runs against.
type Snapshot struct {
	Business model.Business `json:"business"`
	Service  model.Service  `json:"service"`
}

// Source supplies business hours and services. Implementations return
// ErrNotFound when the business or the service (within that business) is unknown.
type Source interface {
	Business(ctx context.Context, businessID string) (model.Business, error)
	Snapshot(ctx context.Context, businessID, serviceID string) (Snapshot, error)
}

// BusinessFilter narrows the public business directory. Only active
// businesses are ever listed.
type BusinessFilter struct {
	Category model.Category
	Limit    int
}
