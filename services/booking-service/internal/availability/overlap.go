package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

type SlotStatus struct {
	Time      TimeOfDay `json:"time"`
	StartsAt  time.Time `json:"starts_at"`
	Available bool      `json:"available"`
}

// SlotsAvailability resolves slots on date to instants in loc and marks each
// one unavailable when it has already started or overlaps a booked interval.
// Wall times that do not exist on date (DST gap) are dropped.
func SlotsAvailability(date CivilDate, slots []TimeOfDay, duration time.Duration, loc *time.Location, booked []Interval, now time.Time) []SlotStatus {
	out := make([]SlotStatus, 0, len(slots))
	for _, t := range slots {
		if !date.ExistsIn(t, loc) {
			continue
		}
		start := date.At(t, loc)
		end := start.Add(duration)
		out = append(out, SlotStatus{
			Time:      t,
			StartsAt:  start,
			Available: !start.Before(now) && !overlapsAny(start, end, booked),
		})
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
