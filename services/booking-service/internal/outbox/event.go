package outbox

import (
	"encoding/json"
	"fmt"
)

const (
	TopicBookingCreated       = "booking.created.v1"
	TopicBookingStatusChanged = "booking.status_changed.v1"
	TopicPaymentStatusChanged = "booking.payment_status_changed.v1"
	TopicReviewSubmitted      = "review.submitted.v1"
	TopicCatalogChanged       = "catalog.business.changed.v1"
	TopicSettingsChanged      = "platform.settings_changed.v1"
)

// Event is the envelope written to the outbox table. The Kafka topic equals
// EventType and the message key is AggregateID.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}

// CatalogChanged is published when hours, services or approval status of a
// business change. Consumers drop cached snapshots of the business.
type CatalogChanged struct {
	BusinessID string `json:"business_id"`
	Change     string `json:"change"`
}
