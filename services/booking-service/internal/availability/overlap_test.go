package availability

import (
	"errors"
	"testing"
	"time"
)

func TestSlotsAvailability_MarksBookedAndElapsed(t *testing.T) {
	hours := WeekdayHours(TimeOf(9, 0), TimeOf(12, 0))
	slots := ComputeSlots(hours, Minutes(60), monday)
	booked := []Interval{{
		Start: monday.At(TimeOf(10, 0), time.UTC),
		End:   monday.At(TimeOf(11, 0), time.UTC),
	}}
	now := monday.At(TimeOf(9, 30), time.UTC)

	got := SlotsAvailability(monday, slots, time.Hour, time.UTC, booked, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(got))
	}
	want := []bool{false, false, true}
	for i, s := range got {
		if s.Available != want[i] {
			t.Fatalf("slot %s: expected available=%v", s.Time, want[i])
		}
	}
}

func TestSlotsAvailability_AdjacentBookingDoesNotBlock(t *testing.T) {
	slots := []TimeOfDay{TimeOf(10, 0)}
	booked := []Interval{{
		Start: monday.At(TimeOf(9, 0), time.UTC),
		End:   monday.At(TimeOf(10, 0), time.UTC),
	}}
	got := SlotsAvailability(monday, slots, time.Hour, time.UTC, booked, monday.At(0, time.UTC))
	if !got[0].Available {
		t.Fatal("half-open intervals that touch must not overlap")
	}
}

func TestSlotsAvailability_SkipsDSTGap(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks jump from 02:00 to 03:00 on 2026-03-08.
	day := CivilDate{Year: 2026, Month: time.March, Day: 8}
	slots := []TimeOfDay{TimeOf(1, 0), TimeOf(2, 0), TimeOf(2, 30), TimeOf(3, 0)}
	got := SlotsAvailability(day, slots, 30*time.Minute, ny, nil, time.Time{})
	if len(got) != 2 || got[0].Time != TimeOf(1, 0) || got[1].Time != TimeOf(3, 0) {
		t.Fatalf("expected 01:00 and 03:00 only, got %+v", got)
	}
	if _, err := ValidateStart(day, TimeOf(2, 30), ny, time.Time{}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected gap time rejected, got %v", err)
	}
}

func TestValidateStart(t *testing.T) {
	now := monday.At(TimeOf(12, 0), time.UTC)
	if _, err := ValidateStart(monday, TimeOf(11, 0), time.UTC, now); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected elapsed slot rejected, got %v", err)
	}
	start, err := ValidateStart(monday, TimeOf(13, 0), time.UTC, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
}
