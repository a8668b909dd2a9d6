package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/outbox"
)

type ReviewRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewReviewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *ReviewRepository {
	return &ReviewRepository{pool: pool, outbox: outboxRepo}
}

// CreateReview stores r. When r links a booking, the booking is locked and
// must be completed and owned by the reviewer; a booking is reviewed once.
func (r *ReviewRepository) CreateReview(ctx context.Context, rv booking.Review) (booking.Review, error) {
	if _, err := uuid.Parse(rv.BusinessID); err != nil {
		return booking.Review{}, catalog.ErrNotFound
	}
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var bookingID any
		if rv.BookingID != "" {
			if _, err := uuid.Parse(rv.BookingID); err != nil {
				return booking.ErrNotFound
			}
			b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, rv.BookingID))
			if err != nil {
				return bookingNotFound(err)
			}
			if err := booking.CheckReviewEligible(b, rv); err != nil {
				return err
			}
			bookingID = rv.BookingID
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO reviews (id, business_id, customer_id, booking_id, rating, comment, is_published)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`, rv.ID, rv.BusinessID, rv.CustomerID, bookingID, rv.Rating, rv.Comment, rv.IsPublished).Scan(&rv.CreatedAt); err != nil {
			switch {
			case uniqueConstraint(err) == "reviews_booking_uniq":
				return booking.ErrReviewNotEligible
			case isForeignKeyViolation(err):
				return catalog.ErrNotFound
			}
			return err
		}

		evt, err := outbox.NewEvent("review", rv.ID, outbox.TopicReviewSubmitted, rv)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return booking.Review{}, err
	}
	return rv, nil
}

// ListReviews returns published reviews of a business, newest first.
func (r *ReviewRepository) ListReviews(ctx context.Context, businessID string, limit int) ([]booking.Review, error) {
	if _, err := uuid.Parse(businessID); err != nil {
		return nil, catalog.ErrNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, customer_id, COALESCE(booking_id::text, ''), rating, comment, is_published, created_at
		FROM reviews
		WHERE business_id = $1 AND is_published
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Review
	for rows.Next() {
		var rv booking.Review
		if err := rows.Scan(&rv.ID, &rv.BusinessID, &rv.CustomerID, &rv.BookingID, &rv.Rating, &rv.Comment, &rv.IsPublished, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
