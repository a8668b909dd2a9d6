package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/outbox"
	"github.com/shopspring/decimal"
)

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

const bookingColumns = `id::text, business_id::text, service_id::text, customer_id, customer_name, customer_email,
	customer_phone, notes, date, time, starts_at, duration_minutes, status, payment_status,
	payment_amount::text, currency, COALESCE(payment_intent_id, ''), payment_attempts, created_at, updated_at`

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var b booking.Booking
	var date time.Time
	var tod pgtype.Time
	var amount string
	if err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.CustomerID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Notes,
		&date,
		&tod,
		&b.StartsAt,
		&b.DurationMinutes,
		&b.Status,
		&b.PaymentStatus,
		&amount,
		&b.Currency,
		&b.PaymentIntentID,
		&b.PaymentAttempts,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return booking.Booking{}, err
	}
	b.Date = availability.DateOf(date)
	b.Time = availability.TimeOfDay(tod.Microseconds / int64(time.Minute/time.Microsecond))
	p, err := decimal.NewFromString(amount)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("decode amount of booking %s: %w", b.ID, err)
	}
	b.PaymentAmount = p
	return b, nil
}

func pgDate(d availability.CivilDate) pgtype.Date {
	return pgtype.Date{Time: time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC), Valid: true}
}

func pgTime(t availability.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Minutes()) * int64(time.Minute/time.Microsecond), Valid: true}
}

func bookingNotFound(err error) error {
	if IsNotFound(err) {
		return booking.ErrNotFound
	}
	return err
}

// CreateBooking commits b and its booking.created event atomically. A live
// booking for the same slot makes the insert fail with booking.ErrConflict.
//
// With a non-empty idempotencyKey a repeated request from the same customer
// returns the booking created the first time and replayed is true.
func (r *BookingRepository) CreateBooking(ctx context.Context, b booking.Booking, idempotencyKey string) (created booking.Booking, replayed bool, err error) {
	err = r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if idempotencyKey != "" {
			prior, err := r.lockIdempotencyKey(ctx, tx, b.CustomerID, idempotencyKey)
			if err != nil {
				return err
			}
			if prior != "" {
				existing, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, prior))
				if err != nil {
					return bookingNotFound(err)
				}
				created, replayed = existing, true
				return nil
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO bookings (id, business_id, service_id, customer_id, customer_name, customer_email, customer_phone,
				notes, date, time, starts_at, duration_minutes, status, payment_status, payment_amount, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::numeric, $16)
			RETURNING `+bookingColumns,
			b.ID, b.BusinessID, b.ServiceID, b.CustomerID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.Notes, pgDate(b.Date), pgTime(b.Time), b.StartsAt, b.DurationMinutes, b.Status, b.PaymentStatus,
			b.PaymentAmount.String(), b.Currency)
		inserted, err := scanBooking(row)
		if err != nil {
			return slotConflict(err, b.Date.String()+" "+b.Time.String())
		}

		if idempotencyKey != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE booking_idempotency_keys
				SET booking_id = $3, status_code = 201, updated_at = now()
				WHERE customer_id = $1 AND idempotency_key = $2
			`, b.CustomerID, idempotencyKey, inserted.ID); err != nil {
				return err
			}
		}

		if err := r.emit(ctx, tx, inserted.ID, outbox.TopicBookingCreated, bookingEvent(inserted, "")); err != nil {
			return err
		}
		created = inserted
		return nil
	})
	return created, replayed, err
}

func (r *BookingRepository) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, customerID, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key); err != nil {
		return "", err
	}
	var bookingID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(&bookingID)
	return bookingID, err
}

func (r *BookingRepository) Get(ctx context.Context, id string) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, bookingNotFound(err)
}

func (r *BookingRepository) List(ctx context.Context, f booking.ListFilter) ([]booking.Booking, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.BusinessID != "" {
		add("business_id = $%d", f.BusinessID)
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("date >= $%d", pgDate(f.From))
	}
	if !f.To.IsZero() {
		add("date <= $%d", pgDate(f.To))
	}
	if len(where) == 0 {
		return nil, errors.New("list bookings: business or customer filter required")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date DESC, time DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus locks the booking, runs check (ownership, notice period)
// against the current row, validates the move against the lifecycle table
// and records a status_changed event.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, to booking.Status, check func(booking.Booking) error) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var out booking.Booking
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return bookingNotFound(err)
		}
		if check != nil {
			if err := check(cur); err != nil {
				return err
			}
		}
		if err := booking.Transition(cur.Status, to); err != nil {
			return err
		}
		updated, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns, id, to))
		if err != nil {
			return err
		}
		out = updated
		return r.emit(ctx, tx, id, outbox.TopicBookingStatusChanged, bookingEvent(updated, string(cur.Status)))
	})
	return out, err
}

// AttachPaymentIntent moves the booking's payment to pending under intentID
// and counts the attempt.
func (r *BookingRepository) AttachPaymentIntent(ctx context.Context, id, intentID string, check func(booking.Booking) error) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var out booking.Booking
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return bookingNotFound(err)
		}
		if check != nil {
			if err := check(cur); err != nil {
				return err
			}
		}
		if err := booking.PaymentTransition(cur.PaymentStatus, booking.PaymentPending); err != nil {
			return err
		}
		updated, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings
			SET payment_status = $2, payment_intent_id = $3, payment_attempts = payment_attempts + 1, updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns, id, booking.PaymentPending, intentID))
		if err != nil {
			return err
		}
		out = updated
		return r.emit(ctx, tx, id, outbox.TopicPaymentStatusChanged, bookingEvent(updated, string(cur.PaymentStatus)))
	})
	return out, err
}

// UpdatePaymentStatusByIntent applies a provider outcome. Re-applying the
// current status is a no-op so webhook retries are harmless.
func (r *BookingRepository) UpdatePaymentStatusByIntent(ctx context.Context, intentID string, to booking.PaymentStatus) (booking.Booking, error) {
	var out booking.Booking
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = $1 FOR UPDATE`, intentID))
		if err != nil {
			return bookingNotFound(err)
		}
		if cur.PaymentStatus == to {
			out = cur
			return nil
		}
		if err := booking.PaymentTransition(cur.PaymentStatus, to); err != nil {
			return err
		}
		updated, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET payment_status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns, cur.ID, to))
		if err != nil {
			return err
		}
		out = updated
		return r.emit(ctx, tx, cur.ID, outbox.TopicPaymentStatusChanged, bookingEvent(updated, string(cur.PaymentStatus)))
	})
	return out, err
}

// BookedIntervals returns the intervals held by live bookings of one
// service on date.
func (r *BookingRepository) BookedIntervals(ctx context.Context, businessID, serviceID string, date availability.CivilDate) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT starts_at, duration_minutes
		FROM bookings
		WHERE business_id = $1 AND service_id = $2 AND date = $3 AND status <> 'cancelled'
		ORDER BY starts_at ASC
	`, businessID, serviceID, pgDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var start time.Time
		var minutes int
		if err := rows.Scan(&start, &minutes); err != nil {
			return nil, err
		}
		out = append(out, availability.Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)})
	}
	return out, rows.Err()
}

func (r *BookingRepository) emit(ctx context.Context, tx pgx.Tx, bookingID, topic string, payload any) error {
	evt, err := outbox.NewEvent("booking", bookingID, topic, payload)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, evt)
}

type bookingEventPayload struct {
	BookingID     string `json:"booking_id"`
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	StartsAt      string `json:"starts_at"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentAmount string `json:"payment_amount"`
	Currency      string `json:"currency"`
	Previous      string `json:"previous,omitempty"`
}

func bookingEvent(b booking.Booking, previous string) bookingEventPayload {
	return bookingEventPayload{
		BookingID:     b.ID,
		BusinessID:    b.BusinessID,
		ServiceID:     b.ServiceID,
		CustomerID:    b.CustomerID,
		CustomerEmail: b.CustomerEmail,
		Date:          b.Date.String(),
		Time:          b.Time.String(),
		StartsAt:      b.StartsAt.UTC().Format(time.RFC3339),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentAmount: b.PaymentAmount.StringFixed(2),
		Currency:      b.Currency,
		Previous:      previous,
	}
}

// PendingPayments lists bookings whose payment has been pending since
// before olderThan, oldest first.
func (r *BookingRepository) PendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]booking.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE payment_status = 'pending' AND payment_intent_id IS NOT NULL AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
