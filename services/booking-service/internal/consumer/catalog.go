package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/pointme/pointme/services/booking-service/internal/outbox"
	"github.com/segmentio/kafka-go"
)

// Invalidator drops cached catalog state for a business.
type Invalidator interface {
	Invalidate(ctx context.Context, businessID string) error
}

// CatalogChangedHandler invalidates the snapshot cache when a business's
// hours, services or status change. Malformed payloads are logged and
// skipped since redelivery cannot fix them.
func CatalogChangedHandler(cache Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload outbox.CatalogChanged
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid catalog event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		payload.BusinessID = strings.TrimSpace(payload.BusinessID)
		if payload.BusinessID == "" {
			logger.Error("catalog event missing business_id", "topic", msg.Topic)
			return nil
		}
		if err := cache.Invalidate(ctx, payload.BusinessID); err != nil {
			return errors.Join(errors.New("invalidate catalog cache"), err)
		}
		logger.Info("catalog cache invalidated", "business_id", payload.BusinessID, "change", payload.Change)
		return nil
	}
}
