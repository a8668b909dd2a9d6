package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestServiceValidate(t *testing.T) {
	ok := Service{Name: "Haircut", DurationMinutes: 30, Price: decimal.RequireFromString("25.00")}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if ok.Duration() != 30*time.Minute {
		t.Fatalf("unexpected duration %s", ok.Duration())
	}

	bad := []Service{
		{Name: "", DurationMinutes: 30},
		{Name: "x", DurationMinutes: 0},
		{Name: "x", DurationMinutes: 1441},
		{Name: "x", DurationMinutes: 30, Price: decimal.NewFromInt(-1)},
	}
	for i, s := range bad {
		if err := s.Validate(); !errors.Is(err, ErrInvalidService) {
			t.Fatalf("case %d: expected ErrInvalidService, got %v", i, err)
		}
	}
}

func TestBusinessLocation(t *testing.T) {
	loc, err := Business{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC default, got %v (%v)", loc, err)
	}
	if _, err := (Business{ID: "b", Timezone: "Mars/Olympus"}).Location(); err == nil {
		t.Fatal("expected unknown timezone error")
	}
}

func TestBusinessStatus(t *testing.T) {
	if !BusinessActive.Valid() || BusinessStatus("closed").Valid() {
		t.Fatal("unexpected status validity")
	}
	if (Business{Status: BusinessPending}).AcceptsBookings() {
		t.Fatal("pending business must not accept bookings")
	}
	if !CategoryBeauty.Valid() || Category("food").Valid() {
		t.Fatal("unexpected category validity")
	}
}
