package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
var monday = CivilDate{Year: 2026, Month: time.March, Day: 2}

func mustTimes(t *testing.T, values ...string) []TimeOfDay {
	t.Helper()
	out := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		tod, err := ParseTimeOfDay(v)
		if err != nil {
			t.Fatalf("parse %q: %v", v, err)
		}
		out = append(out, tod)
	}
	return out
}

func TestComputeSlots_NineToFiveHourly(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(17, 0))
	got := ComputeSlots(hours, Minutes(60), monday)
	want := mustTimes(t, "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestComputeSlots_DropsTrailingPartialInterval(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(17, 30))
	got := ComputeSlots(hours, Minutes(60), monday)
	if len(got) != 8 {
		t.Fatalf("expected 8 slots, got %d (%v)", len(got), got)
	}
	if last := got[len(got)-1]; last != TimeOf(16, 0) {
		t.Fatalf("expected last slot 16:00, got %s", last)
	}
}

func TestComputeSlots_ClosedDayIsEmptyForAnyDate(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(17, 0))
	// Saturdays and Sundays across several weeks.
	for i := 0; i < 8; i++ {
		for _, offset := range []int{5, 6} {
			d := monday.AddDays(7*i + offset)
			if d.Weekday() != Saturday && d.Weekday() != Sunday {
				t.Fatalf("%s resolved to %s", d, d.Weekday())
			}
			if got := ComputeSlots(hours, Minutes(30), d); len(got) != 0 {
				t.Fatalf("expected no slots on %s, got %v", d, got)
			}
		}
	}
}

func TestComputeSlots_EvenDivisionProperties(t *testing.T) {
	for open := TimeOf(6, 0); open <= TimeOf(12, 0); open += 45 {
		for _, dur := range []int{15, 20, 30, 45, 60, 90} {
			for n := 1; n <= 10; n++ {
				closeAt := open + TimeOfDay(dur*n)
				if closeAt > EndOfDay {
					continue
				}
				hours := WeekdayHours(open, closeAt)
				got := ComputeSlots(hours, Minutes(dur), monday)
				if len(got) != n {
					t.Fatalf("open=%s close=%s dur=%d: expected %d slots, got %d", open, closeAt, dur, n, len(got))
				}
				if got[0] != open {
					t.Fatalf("first slot %s != open %s", got[0], open)
				}
				if got[len(got)-1].Add(Minutes(dur).Duration()) != closeAt {
					t.Fatalf("last slot %s + %d != close %s", got[len(got)-1], dur, closeAt)
				}
				for i := 1; i < len(got); i++ {
					if got[i] <= got[i-1] {
						t.Fatalf("slots not strictly increasing: %v", got)
					}
				}
			}
		}
	}
}

func TestComputeSlots_DegenerateInputs(t *testing.T) {
	cases := []struct {
		name    string
		hours   BusinessHours
		service Service
	}{
		{"open equals close", WeekdayHours(TimeOf(9, 0), TimeOf(9, 0)), Minutes(30)},
		{"close before open", WeekdayHours(TimeOf(17, 0), TimeOf(9, 0)), Minutes(30)},
		{"zero duration", WeekdayHours(TimeOf(9, 0), TimeOf(17, 0)), Minutes(0)},
		{"negative duration", WeekdayHours(TimeOf(9, 0), TimeOf(17, 0)), Minutes(-15)},
		{"longer than the day", WeekdayHours(TimeOf(9, 0), TimeOf(10, 0)), Minutes(61)},
		{"nil service", WeekdayHours(TimeOf(9, 0), TimeOf(17, 0)), nil},
	}
	for _, tc := range cases {
		if got := ComputeSlots(tc.hours, tc.service, monday); len(got) != 0 {
			t.Fatalf("%s: expected no slots, got %v", tc.name, got)
		}
	}
}

func TestComputeSlots_Idempotent(t *testing.T) {
	hours := WeekdayHours(TimeOf(8, 15), TimeOf(18, 40))
	a := ComputeSlots(hours, Minutes(25), monday)
	b := ComputeSlots(hours, Minutes(25), monday)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated calls differ: %v vs %v", a, b)
	}
}

func TestComputeSlots_CloseAtMidnight(t *testing.T) {
	hours := WeekdayHours(TimeOf(22, 0), EndOfDay)
	got := ComputeSlots(hours, Minutes(60), monday)
	if !reflect.DeepEqual(got, mustTimes(t, "22:00", "23:00")) {
		t.Fatalf("unexpected slots %v", got)
	}
}

func TestIsDateSelectable(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(17, 0))
	today := monday.AddDays(2) // Wednesday

	if IsDateSelectable(hours, monday, today) {
		t.Fatal("past date must not be selectable")
	}
	if !IsDateSelectable(hours, today, today) {
		t.Fatal("today must be selectable on an open day")
	}
	if IsDateSelectable(hours, today.AddDays(3), today) {
		t.Fatal("saturday is closed")
	}
	if !IsDateSelectable(hours, today.AddDays(5), today) {
		t.Fatal("next monday should be selectable")
	}

	saturday := monday.AddDays(5)
	if IsDateSelectable(hours, saturday, saturday) {
		t.Fatal("today is not selectable when closed")
	}
}

func TestValidateBookingRequest(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(17, 0))
	svc := Minutes(60)

	if err := ValidateBookingRequest(hours, svc, monday, TimeOf(10, 0), monday); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateBookingRequest(hours, svc, monday, TimeOf(8, 0), monday); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for 08:00, got %v", err)
	}
	if err := ValidateBookingRequest(hours, svc, monday, TimeOf(10, 30), monday); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for off-grid time, got %v", err)
	}
	if err := ValidateBookingRequest(hours, svc, monday, TimeOf(17, 0), monday); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for 17:00, got %v", err)
	}
	if err := ValidateBookingRequest(hours, svc, monday, TimeOf(10, 0), monday.AddDays(1)); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for past date, got %v", err)
	}
	if err := ValidateBookingRequest(hours, svc, monday.AddDays(6), TimeOf(10, 0), monday); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for closed day, got %v", err)
	}
}

func TestCheckHorizon(t *testing.T) {
	if err := CheckHorizon(monday.AddDays(90), monday, 90); err != nil {
		t.Fatalf("day 90 should be allowed: %v", err)
	}
	if err := CheckHorizon(monday.AddDays(91), monday, 90); !errors.Is(err, ErrBeyondHorizon) {
		t.Fatalf("expected ErrBeyondHorizon, got %v", err)
	}
	if err := CheckHorizon(monday.AddDays(5000), monday, 0); err != nil {
		t.Fatalf("disabled horizon should allow any date: %v", err)
	}
}
