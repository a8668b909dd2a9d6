package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pointme/pointme/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewEventEncodesPayload(t *testing.T) {
	evt, err := NewEvent("business", "biz-1", TopicCatalogChanged, CatalogChanged{BusinessID: "biz-1", Change: "hours"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var got CatalogChanged
	if err := json.Unmarshal(evt.Payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BusinessID != "biz-1" || got.Change != "hours" || evt.EventType != TopicCatalogChanged {
		t.Fatalf("unexpected event %+v / %+v", evt, got)
	}
}

func TestToMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	rec := Record{
		ID:          7,
		EventID:     "2b1f8f3e-0d5c-4e7c-9d7e-000000000001",
		AggregateID: "bk-1",
		EventType:   TopicBookingCreated,
		Payload:     []byte(`{"booking_id":"bk-1"}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	msg := ToMessage(context.Background(), rec)
	if msg.Topic != TopicBookingCreated || string(msg.Key) != "bk-1" {
		t.Fatalf("unexpected routing %s/%s", msg.Topic, msg.Key)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != rec.EventID || meta.EventType != TopicBookingCreated {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != rec.Traceparent {
		t.Fatalf("expected traceparent %q, got %q", rec.Traceparent, got)
	}
}
