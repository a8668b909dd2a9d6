package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIntRejectsMalformedValue(t *testing.T) {
	t.Setenv("POINTME_TEST_INT", "ten")
	if _, err := Int("POINTME_TEST_INT", 3); err == nil {
		t.Fatal("expected error for malformed integer")
	}

	t.Setenv("POINTME_TEST_INT", "")
	n, err := Int("POINTME_TEST_INT", 3)
	if err != nil || n != 3 {
		t.Fatalf("expected fallback 3, got %d (%v)", n, err)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("POINTME_TEST_TTL", "90s")
	d, err := Duration("POINTME_TEST_TTL", time.Minute)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if d != 90*time.Second {
		t.Fatalf("expected 90s, got %s", d)
	}
}

func TestList(t *testing.T) {
	t.Setenv("POINTME_TEST_LIST", " a, ,b ,c")
	got := List("POINTME_TEST_LIST")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestLoadPlatformSettingsOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platform.yml")
	if err := os.WriteFile(path, []byte("max_advance_booking_days: 30\ncurrency: eur\n"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	s, err := LoadPlatformSettings(path)
	if err != nil {
		t.Fatalf("LoadPlatformSettings failed: %v", err)
	}
	if s.MaxAdvanceBookingDays != 30 || s.Currency != "eur" {
		t.Fatalf("file values not applied: %+v", s)
	}
	if s.MinCancellationHours != DefaultPlatformSettings().MinCancellationHours {
		t.Fatalf("default min cancellation hours lost: %+v", s)
	}
	if s.MinCancellationNotice() != 24*time.Hour {
		t.Fatalf("unexpected notice %s", s.MinCancellationNotice())
	}
}

func TestLoadPlatformSettingsValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platform.yml")
	if err := os.WriteFile(path, []byte("currency: EURO\n"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if _, err := LoadPlatformSettings(path); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings for bad currency, got %v", err)
	}
}

func TestLoadPlatformSettingsEmptyPath(t *testing.T) {
	s, err := LoadPlatformSettings("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != DefaultPlatformSettings() {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestValidateBoundsBusinessesPerUser(t *testing.T) {
	s := DefaultPlatformSettings()
	s.MaxBusinessesPerUser = 0
	if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	s.MaxBusinessesPerUser = 3
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
