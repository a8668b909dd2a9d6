package booking

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Transition checks from -> to against the lifecycle table.
func Transition(from, to Status) error {
	for _, next := range statusTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Kind: "status", From: string(from), To: string(to)}
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// Authorize reports whether role may move a booking to status to.
// Customers may only cancel; business owners and admins drive every move.
// Ownership of the booking is checked by the caller.
func Authorize(role Role, to Status) error {
	switch role {
	case RoleBusiness, RoleAdmin:
		return nil
	case RoleCustomer:
		if to == StatusCancelled {
			return nil
		}
	}
	return ErrForbidden
}

// CheckCancellationNotice rejects a customer cancellation made less than
// minNotice before the appointment starts.
func CheckCancellationNotice(startsAt, now time.Time, minNotice time.Duration) error {
	if minNotice <= 0 {
		return nil
	}
	if startsAt.Sub(now) < minNotice {
		return ErrCancellationNotice
	}
	return nil
}
