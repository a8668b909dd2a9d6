package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/services/booking-service/internal/outbox"
)

// SettingsRepository serves the platform settings row. Until an
// administrator saves settings the seed from the settings file applies.
// Reads are cached per process for ttl.
type SettingsRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	seed   config.PlatformSettings
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   config.PlatformSettings
	loadedAt time.Time
	loaded   bool
}

func NewSettingsRepository(pool *db.Pool, outboxRepo *outbox.Repository, seed config.PlatformSettings, ttl time.Duration) *SettingsRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SettingsRepository{pool: pool, outbox: outboxRepo, seed: seed, ttl: ttl, now: time.Now}
}

// Current returns the settings in force. When the row cannot be read a
// previously loaded value is served together with the error.
func (r *SettingsRepository) Current(ctx context.Context) (config.PlatformSettings, error) {
	r.mu.Lock()
	if r.loaded && r.now().Sub(r.loadedAt) < r.ttl {
		s := r.cached
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	s, err := r.load(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.loaded {
			return r.cached, err
		}
		return r.seed, err
	}
	r.remember(s)
	return s, nil
}

func (r *SettingsRepository) load(ctx context.Context) (config.PlatformSettings, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT settings FROM platform_settings WHERE id`).Scan(&raw)
	if IsNotFound(err) {
		return r.seed, nil
	}
	if err != nil {
		return config.PlatformSettings{}, err
	}
	return decodeSettings(raw, r.seed)
}

// decodeSettings overlays the stored document on seed so settings added
// after the row was written keep their seeded value.
func decodeSettings(raw []byte, seed config.PlatformSettings) (config.PlatformSettings, error) {
	s := seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return config.PlatformSettings{}, fmt.Errorf("decode platform settings: %w", err)
	}
	return s, nil
}

// Update validates and stores s, then publishes a settings change event.
func (r *SettingsRepository) Update(ctx context.Context, s config.PlatformSettings, updatedBy string) (config.PlatformSettings, error) {
	if err := s.Validate(); err != nil {
		return config.PlatformSettings{}, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return config.PlatformSettings{}, err
	}
	err = r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO platform_settings (id, settings, updated_by, updated_at)
			VALUES (true, $1, $2, now())
			ON CONFLICT (id) DO UPDATE
			SET settings = EXCLUDED.settings, updated_by = EXCLUDED.updated_by, updated_at = now()
		`, raw, updatedBy); err != nil {
			return err
		}
		evt, err := outbox.NewEvent("platform", "settings", outbox.TopicSettingsChanged, s)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return config.PlatformSettings{}, err
	}
	r.mu.Lock()
	r.remember(s)
	r.mu.Unlock()
	return s, nil
}

func (r *SettingsRepository) remember(s config.PlatformSettings) {
	r.cached, r.loadedAt, r.loaded = s, r.now(), true
}
