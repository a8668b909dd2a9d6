package availability

import "errors"

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrInvalidHours    = errors.New("invalid business hours")
	ErrBeyondHorizon   = errors.New("date beyond booking horizon")
)
