package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/pointme/pointme/services/booking-service/internal/outbox"
	"github.com/shopspring/decimal"
)

// CatalogRepository stores businesses and services. It is the catalog
// source behind the Redis cache, and every write emits a catalog change
// event in the same transaction.
type CatalogRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewCatalogRepository(pool *db.Pool, outboxRepo *outbox.Repository) *CatalogRepository {
	return &CatalogRepository{pool: pool, outbox: outboxRepo}
}

var _ catalog.Source = (*CatalogRepository)(nil)

const businessColumns = `id::text, owner_id, name, category, timezone, status, hours, created_at, updated_at`

func scanBusiness(row pgx.Row) (model.Business, error) {
	var b model.Business
	var hours []byte
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Category, &b.Timezone, &b.Status, &hours, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Business{}, err
	}
	if err := json.Unmarshal(hours, &b.Hours); err != nil {
		return model.Business{}, fmt.Errorf("decode hours of business %s: %w", b.ID, err)
	}
	return b, nil
}

const serviceColumns = `id::text, business_id::text, name, description, duration_minutes, price::text, is_available, created_at, updated_at`

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	var price string
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.DurationMinutes, &price, &s.IsAvailable, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Service{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return model.Service{}, fmt.Errorf("decode price of service %s: %w", s.ID, err)
	}
	s.Price = p
	return s, nil
}

func notFound(err error) error {
	if IsNotFound(err) {
		return catalog.ErrNotFound
	}
	return err
}

func (r *CatalogRepository) Business(ctx context.Context, businessID string) (model.Business, error) {
	if _, err := uuid.Parse(businessID); err != nil {
		return model.Business{}, catalog.ErrNotFound
	}
	b, err := scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, businessID))
	return b, notFound(err)
}

// BusinessesByOwner lists the owner's businesses, oldest first.
func (r *CatalogRepository) BusinessesByOwner(ctx context.Context, ownerID string) ([]model.Business, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+businessColumns+` FROM businesses WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectBusinesses(rows)
}

// ListBusinesses returns active businesses by name, optionally of one category.
func (r *CatalogRepository) ListBusinesses(ctx context.Context, f catalog.BusinessFilter) ([]model.Business, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+businessColumns+`
		FROM businesses
		WHERE status = 'active' AND ($1 = '' OR category = $1)
		ORDER BY name ASC, id ASC
		LIMIT $2
	`, string(f.Category), limit)
	if err != nil {
		return nil, err
	}
	return collectBusinesses(rows)
}

func collectBusinesses(rows pgx.Rows) ([]model.Business, error) {
	defer rows.Close()
	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Snapshot(ctx context.Context, businessID, serviceID string) (catalog.Snapshot, error) {
	b, err := r.Business(ctx, businessID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	if _, err := uuid.Parse(serviceID); err != nil {
		return catalog.Snapshot{}, catalog.ErrNotFound
	}
	s, err := scanService(r.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1 AND business_id = $2`, serviceID, businessID))
	if err != nil {
		return catalog.Snapshot{}, notFound(err)
	}
	return catalog.Snapshot{Business: b, Service: s}, nil
}

// CreateBusiness registers a business in pending status awaiting admin
// approval. Owners already at maxPerOwner businesses get ErrBusinessLimit;
// a transaction-scoped advisory lock on the owner serialises the count.
func (r *CatalogRepository) CreateBusiness(ctx context.Context, b model.Business, maxPerOwner int) (model.Business, error) {
	hours, err := json.Marshal(b.Hours)
	if err != nil {
		return model.Business{}, err
	}
	b.ID = uuid.NewString()
	b.Status = model.BusinessPending
	err = r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if maxPerOwner > 0 {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "owner:"+b.OwnerID); err != nil {
				return err
			}
			var n int
			if err := tx.QueryRow(ctx, `SELECT count(*) FROM businesses WHERE owner_id = $1`, b.OwnerID).Scan(&n); err != nil {
				return err
			}
			if n >= maxPerOwner {
				return fmt.Errorf("%w (%d)", ErrBusinessLimit, maxPerOwner)
			}
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO businesses (id, owner_id, name, category, timezone, status, hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, b.ID, b.OwnerID, b.Name, b.Category, b.Timezone, b.Status, hours).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
			return err
		}
		return r.catalogChanged(ctx, tx, b.ID, "registered")
	})
	if err != nil {
		return model.Business{}, err
	}
	return b, nil
}

func (r *CatalogRepository) UpdateHours(ctx context.Context, businessID string, hours availability.BusinessHours) (model.Business, error) {
	if _, err := uuid.Parse(businessID); err != nil {
		return model.Business{}, catalog.ErrNotFound
	}
	raw, err := json.Marshal(hours)
	if err != nil {
		return model.Business{}, err
	}
	var out model.Business
	err = r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBusiness(tx.QueryRow(ctx, `
			UPDATE businesses SET hours = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+businessColumns, businessID, raw))
		if err != nil {
			return notFound(err)
		}
		out = b
		return r.catalogChanged(ctx, tx, businessID, "hours")
	})
	return out, err
}

func (r *CatalogRepository) SetBusinessStatus(ctx context.Context, businessID string, status model.BusinessStatus) (model.Business, error) {
	if _, err := uuid.Parse(businessID); err != nil {
		return model.Business{}, catalog.ErrNotFound
	}
	var out model.Business
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBusiness(tx.QueryRow(ctx, `
			UPDATE businesses SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+businessColumns, businessID, status))
		if err != nil {
			return notFound(err)
		}
		out = b
		return r.catalogChanged(ctx, tx, businessID, "status")
	})
	return out, err
}

func (r *CatalogRepository) ListServices(ctx context.Context, businessID string, onlyAvailable bool) ([]model.Service, error) {
	if _, err := uuid.Parse(businessID); err != nil {
		return nil, catalog.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE business_id = $1 AND ($2 = false OR is_available)
		ORDER BY name ASC
	`, businessID, onlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateService inserts svc unless the business already has maxPerBusiness
// services. The business row is locked so concurrent creates count correctly.
func (r *CatalogRepository) CreateService(ctx context.Context, svc model.Service, maxPerBusiness int) (model.Service, error) {
	svc.ID = uuid.NewString()
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, `SELECT id::text FROM businesses WHERE id = $1 FOR UPDATE`, svc.BusinessID).Scan(&id); err != nil {
			return notFound(err)
		}
		if maxPerBusiness > 0 {
			var n int
			if err := tx.QueryRow(ctx, `SELECT count(*) FROM services WHERE business_id = $1`, svc.BusinessID).Scan(&n); err != nil {
				return err
			}
			if n >= maxPerBusiness {
				return fmt.Errorf("%w (%d)", ErrServiceLimit, maxPerBusiness)
			}
		}
		created, err := scanService(tx.QueryRow(ctx, `
			INSERT INTO services (id, business_id, name, description, duration_minutes, price, is_available)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
			RETURNING `+serviceColumns,
			svc.ID, svc.BusinessID, svc.Name, svc.Description, svc.DurationMinutes, svc.Price.String(), svc.IsAvailable))
		if err != nil {
			return err
		}
		svc = created
		return r.catalogChanged(ctx, tx, svc.BusinessID, "service_created")
	})
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

// UpdateService changes name, description, price and availability freely.
// The duration is fixed once any booking references the service.
func (r *CatalogRepository) UpdateService(ctx context.Context, svc model.Service) (model.Service, error) {
	if _, err := uuid.Parse(svc.ID); err != nil {
		return model.Service{}, catalog.ErrNotFound
	}
	var out model.Service
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := scanService(tx.QueryRow(ctx, `
			SELECT `+serviceColumns+` FROM services
			WHERE id = $1 AND business_id = $2
			FOR UPDATE
		`, svc.ID, svc.BusinessID))
		if err != nil {
			return notFound(err)
		}
		var referenced bool
		if current.DurationMinutes != svc.DurationMinutes {
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE service_id = $1)`, svc.ID).Scan(&referenced); err != nil {
				return err
			}
		}
		if err := durationChangeAllowed(current.DurationMinutes, svc.DurationMinutes, referenced); err != nil {
			return err
		}
		updated, err := scanService(tx.QueryRow(ctx, `
			UPDATE services
			SET name = $2, description = $3, duration_minutes = $4, price = $5::numeric, is_available = $6, updated_at = now()
			WHERE id = $1
			RETURNING `+serviceColumns,
			svc.ID, svc.Name, svc.Description, svc.DurationMinutes, svc.Price.String(), svc.IsAvailable))
		if err != nil {
			return err
		}
		out = updated
		return r.catalogChanged(ctx, tx, svc.BusinessID, "service_updated")
	})
	return out, err
}

func (r *CatalogRepository) catalogChanged(ctx context.Context, tx pgx.Tx, businessID, change string) error {
	evt, err := outbox.NewEvent("business", businessID, outbox.TopicCatalogChanged, outbox.CatalogChanged{
		BusinessID: businessID,
		Change:     change,
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return errors.Join(errors.New("write catalog outbox event"), err)
	}
	return nil
}
