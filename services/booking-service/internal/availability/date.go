package availability

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// CivilDate is a calendar date with no time zone attached. Business hours
// are expressed against civil dates and only become instants through At.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (CivilDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the date of t in t's own location.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d CivilDate) IsZero() bool { return d == CivilDate{} }

func (d CivilDate) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CivilDate) Before(o CivilDate) bool { return d.utc().Before(o.utc()) }
func (d CivilDate) After(o CivilDate) bool  { return d.utc().After(o.utc()) }

func (d CivilDate) AddDays(n int) CivilDate {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// DaysSince returns the number of whole days from o to d (negative when d is earlier).
func (d CivilDate) DaysSince(o CivilDate) int {
	return int(d.utc().Sub(o.utc()).Hours() / 24)
}

func (d CivilDate) Weekday() Weekday {
	return weekdayOf(d.utc().Weekday())
}

// At returns the instant at wall-clock t on d in loc. For wall times that
// fall in a DST gap the result is normalized by the time package; use
// ExistsIn to detect that case.
func (d CivilDate) At(t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, t.Minutes(), 0, 0, loc)
}

// ExistsIn reports whether wall-clock t occurs on d in loc.
func (d CivilDate) ExistsIn(t TimeOfDay, loc *time.Location) bool {
	at := d.At(t, loc)
	return DateOf(at) == d && at.Hour()*60+at.Minute() == t.Minutes()
}

func (d CivilDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CivilDate) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
