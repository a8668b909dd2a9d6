package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = errors.New("invalid platform settings")

// PlatformSettings are the marketplace-wide booking rules administrators
// configure. The YAML file seeds them; administrators change them at runtime.
type PlatformSettings struct {
	MaxBusinessesPerUser   int     `yaml:"max_businesses_per_user" json:"max_businesses_per_user" validate:"min=1,max=100"`
	MaxServicesPerBusiness int     `yaml:"max_services_per_business" json:"max_services_per_business" validate:"min=1,max=1000"`
	MaxAdvanceBookingDays  int     `yaml:"max_advance_booking_days" json:"max_advance_booking_days" validate:"min=1,max=730"`
	MinCancellationHours   int     `yaml:"min_cancellation_hours" json:"min_cancellation_hours" validate:"min=0,max=720"`
	CommissionRate         float64 `yaml:"commission_rate" json:"commission_rate" validate:"min=0,max=1"`
	Currency               string  `yaml:"currency" json:"currency" validate:"required,len=3,lowercase"`
}

func DefaultPlatformSettings() PlatformSettings {
	return PlatformSettings{
		MaxBusinessesPerUser:   1,
		MaxServicesPerBusiness: 50,
		MaxAdvanceBookingDays:  90,
		MinCancellationHours:   24,
		CommissionRate:         0.1,
		Currency:               "usd",
	}
}

func (s PlatformSettings) MinCancellationNotice() time.Duration {
	return time.Duration(s.MinCancellationHours) * time.Hour
}

var settingsValidator = validator.New()

// LoadPlatformSettings overlays the YAML file at path on the defaults. An
// empty path returns the defaults unchanged.
func LoadPlatformSettings(path string) (PlatformSettings, error) {
	settings := DefaultPlatformSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PlatformSettings{}, fmt.Errorf("read platform settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return PlatformSettings{}, fmt.Errorf("decode platform settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return PlatformSettings{}, err
	}
	return settings, nil
}

// Validate reports the first failing field, wrapped in ErrInvalidSettings.
func (s PlatformSettings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", ErrInvalidSettings, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
}
