package availability

import (
	"fmt"
	"time"
)

// Service is the part of a catalog service the engine needs.
type Service interface {
	Duration() time.Duration
}

// Minutes is a Service of a fixed length, handy where only a duration is known.
type Minutes int

func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }

// ComputeSlots lists the start times on date at which service fits entirely
// within the day's open hours, stepping by the service duration. A slot that
// ends exactly at closing time is included; a trailing partial interval is not.
func ComputeSlots(hours BusinessHours, service Service, date CivilDate) []TimeOfDay {
	dh := hours.Day(date.Weekday())
	if dh.Closed || service == nil {
		return nil
	}
	step := service.Duration()
	if step < time.Minute || dh.Close <= dh.Open {
		return nil
	}

	var slots []TimeOfDay
	for cur := dh.Open; cur.Add(step) <= dh.Close; cur = cur.Add(step) {
		slots = append(slots, cur)
	}
	return slots
}

// IsDateSelectable reports whether date can be picked: not in the past
// relative to today and not a closed day.
func IsDateSelectable(hours BusinessHours, date, today CivilDate) bool {
	if date.Before(today) {
		return false
	}
	return !hours.Day(date.Weekday()).Closed
}

// ValidateBookingRequest re-runs the date and slot checks for a proposed
// booking. It does not guard against a concurrent booking of the same slot.
func ValidateBookingRequest(hours BusinessHours, service Service, date CivilDate, t TimeOfDay, today CivilDate) error {
	if !IsDateSelectable(hours, date, today) {
		return fmt.Errorf("%w: %s is not bookable", ErrInvalidDate, date)
	}
	for _, slot := range ComputeSlots(hours, service, date) {
		if slot == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, t, date)
}

// CheckHorizon rejects dates more than maxDays after today. maxDays <= 0
// disables the check.
func CheckHorizon(date, today CivilDate, maxDays int) error {
	if maxDays > 0 && date.DaysSince(today) > maxDays {
		return fmt.Errorf("%w: %s is more than %d days ahead", ErrBeyondHorizon, date, maxDays)
	}
	return nil
}

// ValidateStart checks that slot t on date is a real, future instant in loc.
// It rejects wall times skipped by a DST transition and slots that already began.
func ValidateStart(date CivilDate, t TimeOfDay, loc *time.Location, now time.Time) (time.Time, error) {
	if !date.ExistsIn(t, loc) {
		return time.Time{}, fmt.Errorf("%w: %s on %s does not exist in %s", ErrSlotUnavailable, t, date, loc)
	}
	start := date.At(t, loc)
	if start.Before(now) {
		return time.Time{}, fmt.Errorf("%w: %s on %s has already started", ErrSlotUnavailable, t, date)
	}
	return start, nil
}
