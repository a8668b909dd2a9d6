package availability

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday numbers the days Monday first, matching how business hours are
// edited and stored.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func weekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidHours, s)
}

type DayHours struct {
	Open   TimeOfDay `json:"open"`
	Close  TimeOfDay `json:"close"`
	Closed bool      `json:"closed"`
}

// BusinessHours holds an entry for every weekday, indexed by Weekday.
type BusinessHours [7]DayHours

// ClosedWeek returns hours with every day closed.
func ClosedWeek() BusinessHours {
	var h BusinessHours
	for i := range h {
		h[i].Closed = true
	}
	return h
}

// WeekdayHours opens Monday through Friday from open to close and closes the weekend.
func WeekdayHours(open, close TimeOfDay) BusinessHours {
	h := ClosedWeek()
	for d := Monday; d <= Friday; d++ {
		h[d] = DayHours{Open: open, Close: close}
	}
	return h
}

func (h BusinessHours) Day(d Weekday) DayHours {
	return h[d]
}

func (h *BusinessHours) Set(d Weekday, dh DayHours) {
	h[d] = dh
}

// Validate rejects open days whose close is not strictly after open.
// Overnight spans are not supported.
func (h BusinessHours) Validate() error {
	for i, dh := range h {
		if dh.Closed {
			continue
		}
		if !dh.Open.Valid() || !dh.Close.Valid() || dh.Open >= dh.Close {
			return fmt.Errorf("%w: %s opens %s and closes %s", ErrInvalidHours, Weekday(i), dh.Open, dh.Close)
		}
	}
	return nil
}

func (h BusinessHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]DayHours, len(h))
	for i, dh := range h {
		out[weekdayNames[i]] = dh
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a map keyed by weekday name. Days absent from the
// map are closed; unknown keys are rejected.
func (h *BusinessHours) UnmarshalJSON(b []byte) error {
	var raw map[string]DayHours
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded := ClosedWeek()
	for key, dh := range raw {
		d, err := ParseWeekday(key)
		if err != nil {
			return err
		}
		decoded[d] = dh
	}
	*h = decoded
	return nil
}
