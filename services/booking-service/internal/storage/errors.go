package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
)

const slotIndex = "bookings_slot_uniq"

var (
	ErrServiceInUse  = errors.New("service duration cannot change while bookings reference it")
	ErrServiceLimit  = errors.New("business reached its service limit")
	ErrBusinessLimit = errors.New("owner reached the business limit")
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// pgError returns the server error wrapped in err, or nil.
func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func IsUniqueViolation(err error) bool {
	e := pgError(err)
	return e != nil && e.Code == codeUniqueViolation
}

// uniqueConstraint names the unique constraint err violated, or "".
func uniqueConstraint(err error) string {
	if e := pgError(err); e != nil && e.Code == codeUniqueViolation {
		return e.ConstraintName
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	e := pgError(err)
	return e != nil && e.Code == codeForeignKeyViolation
}

func IsNotFound(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// slotConflict maps a violation of the one-live-booking-per-slot index to
// booking.ErrConflict and passes other errors through.
func slotConflict(err error, slot string) error {
	if uniqueConstraint(err) == slotIndex {
		return fmt.Errorf("%w: %s", booking.ErrConflict, slot)
	}
	return err
}

// durationChangeAllowed guards the one immutable service attribute.
func durationChangeAllowed(current, next int, referenced bool) error {
	if current != next && referenced {
		return ErrServiceInUse
	}
	return nil
}
