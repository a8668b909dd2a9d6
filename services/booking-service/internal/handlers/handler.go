package handlers

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
)

// CatalogReader serves business and service snapshots. Fresh bypasses any cache.
type CatalogReader interface {
	Business(ctx context.Context, businessID string) (model.Business, error)
	Snapshot(ctx context.Context, businessID, serviceID string) (catalog.Snapshot, error)
	Fresh(ctx context.Context, businessID, serviceID string) (catalog.Snapshot, error)
}

type CatalogStore interface {
	BusinessesByOwner(ctx context.Context, ownerID string) ([]model.Business, error)
	ListBusinesses(ctx context.Context, f catalog.BusinessFilter) ([]model.Business, error)
	CreateBusiness(ctx context.Context, b model.Business, maxPerOwner int) (model.Business, error)
	UpdateHours(ctx context.Context, businessID string, hours availability.BusinessHours) (model.Business, error)
	SetBusinessStatus(ctx context.Context, businessID string, status model.BusinessStatus) (model.Business, error)
	ListServices(ctx context.Context, businessID string, onlyAvailable bool) ([]model.Service, error)
	CreateService(ctx context.Context, svc model.Service, maxPerBusiness int) (model.Service, error)
	UpdateService(ctx context.Context, svc model.Service) (model.Service, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b booking.Booking, idempotencyKey string) (booking.Booking, bool, error)
	Get(ctx context.Context, id string) (booking.Booking, error)
	List(ctx context.Context, f booking.ListFilter) ([]booking.Booking, error)
	UpdateStatus(ctx context.Context, id string, to booking.Status, check func(booking.Booking) error) (booking.Booking, error)
	AttachPaymentIntent(ctx context.Context, id, intentID string, check func(booking.Booking) error) (booking.Booking, error)
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, to booking.PaymentStatus) (booking.Booking, error)
	BookedIntervals(ctx context.Context, businessID, serviceID string, date availability.CivilDate) ([]availability.Interval, error)
}

type ReviewStore interface {
	CreateReview(ctx context.Context, r booking.Review) (booking.Review, error)
	ListReviews(ctx context.Context, businessID string, limit int) ([]booking.Review, error)
}

type PaymentProvider interface {
	CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error)
	Refund(ctx context.Context, bookingID, intentID string) error
}

// SettingsStore holds the admin-editable platform settings.
type SettingsStore interface {
	Current(ctx context.Context) (config.PlatformSettings, error)
	Update(ctx context.Context, s config.PlatformSettings, updatedBy string) (config.PlatformSettings, error)
}

// Inbox deduplicates provider webhook deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// CacheInvalidator drops cached snapshots after a catalog write so the
// writer's next read is fresh even before the change event is consumed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, businessID string) error
}

type Deps struct {
	Logger           *slog.Logger
	Catalog          CatalogReader
	CatalogStore     CatalogStore
	Cache            CacheInvalidator
	Bookings         BookingStore
	ReviewStore      ReviewStore
	Payments         PaymentProvider
	Inbox            Inbox
	Clock            availability.Clock
	// Settings is the seed used when SettingsStore is nil or unreachable.
	Settings         config.PlatformSettings
	SettingsStore    SettingsStore
	WebhookSecret    string
	WebhookTolerance time.Duration
}

type Handler struct {
	Deps
	validate *validator.Validate
}

func New(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = availability.SystemClock{}
	}
	if d.WebhookTolerance <= 0 {
		d.WebhookTolerance = 5 * time.Minute
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Deps: d, validate: v}
}

// settings returns the platform settings in force for this request.
func (h *Handler) settings(ctx context.Context) config.PlatformSettings {
	if h.SettingsStore == nil {
		return h.Settings
	}
	s, err := h.SettingsStore.Current(ctx)
	if err != nil {
		h.Logger.Warn("platform settings unavailable, using last known values", "err", err)
	}
	return s
}
