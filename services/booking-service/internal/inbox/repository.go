package inbox

import (
	"context"

	"github.com/pointme/pointme/libs/db"
)

// Event sources. Ids are only unique within a source.
const (
	SourceKafka  = "kafka"
	SourceStripe = "stripe"
)

// Repository remembers processed event ids of one source so redelivered
// messages and webhook retries take effect once.
type Repository struct {
	pool   *db.Pool
	source string
}

func NewRepository(pool *db.Pool, source string) *Repository {
	return &Repository{pool: pool, source: source}
}

// Record reports whether eventID is new. A false result means it was
// already processed.
func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO inbox_events (source, event_id, event_type) VALUES ($1, $2, $3)
		 ON CONFLICT (source, event_id) DO NOTHING`,
		r.source, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Forget undoes Record after a failed handler so a redelivery is retried.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inbox_events WHERE source = $1 AND event_id = $2`, r.source, eventID)
	return err
}
