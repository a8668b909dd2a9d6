package availability

import "time"

// Clock supplies the current instant. Handlers take one so tests can pin "today".
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// TodayIn is the current civil date in loc.
func TodayIn(c Clock, loc *time.Location) CivilDate {
	return DateOf(c.Now().In(loc))
}
