package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pointme/pointme/libs/config"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/pointme/pointme/services/booking-service/internal/payments"
	"github.com/pointme/pointme/services/booking-service/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	mu         sync.Mutex
	businesses map[string]model.Business
	services   map[string]model.Service
	updateErr  error
	freshCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{businesses: map[string]model.Business{}, services: map[string]model.Service{}}
}

func (c *fakeCatalog) Business(_ context.Context, id string) (model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.businesses[id]
	if !ok {
		return model.Business{}, catalog.ErrNotFound
	}
	return b, nil
}

func (c *fakeCatalog) Snapshot(ctx context.Context, businessID, serviceID string) (catalog.Snapshot, error) {
	b, err := c.Business(ctx, businessID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[serviceID]
	if !ok || s.BusinessID != businessID {
		return catalog.Snapshot{}, catalog.ErrNotFound
	}
	return catalog.Snapshot{Business: b, Service: s}, nil
}

func (c *fakeCatalog) Fresh(ctx context.Context, businessID, serviceID string) (catalog.Snapshot, error) {
	c.mu.Lock()
	c.freshCalls++
	c.mu.Unlock()
	return c.Snapshot(ctx, businessID, serviceID)
}

func sortBusinesses(out []model.Business) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (c *fakeCatalog) BusinessesByOwner(_ context.Context, ownerID string) ([]model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Business
	for _, b := range c.businesses {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sortBusinesses(out)
	return out, nil
}

func (c *fakeCatalog) ListBusinesses(_ context.Context, f catalog.BusinessFilter) ([]model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Business
	for _, b := range c.businesses {
		if b.Status != model.BusinessActive || (f.Category != "" && b.Category != f.Category) {
			continue
		}
		out = append(out, b)
	}
	sortBusinesses(out)
	return out, nil
}

func (c *fakeCatalog) CreateBusiness(_ context.Context, b model.Business, maxPerOwner int) (model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owned := 0
	for _, other := range c.businesses {
		if other.OwnerID == b.OwnerID {
			owned++
		}
	}
	if owned >= maxPerOwner {
		return model.Business{}, fmt.Errorf("%w (%d)", storage.ErrBusinessLimit, maxPerOwner)
	}
	b.ID = fmt.Sprintf("biz-new-%d", len(c.businesses))
	b.Status = model.BusinessPending
	b.CreatedAt = time.Now()
	c.businesses[b.ID] = b
	return b, nil
}

func (c *fakeCatalog) UpdateHours(_ context.Context, id string, hours availability.BusinessHours) (model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.businesses[id]
	b.Hours = hours
	c.businesses[id] = b
	return b, nil
}

func (c *fakeCatalog) SetBusinessStatus(_ context.Context, id string, status model.BusinessStatus) (model.Business, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.businesses[id]
	if !ok {
		return model.Business{}, catalog.ErrNotFound
	}
	b.Status = status
	c.businesses[id] = b
	return b, nil
}

func (c *fakeCatalog) ListServices(_ context.Context, businessID string, onlyAvailable bool) ([]model.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Service
	for _, s := range c.services {
		if s.BusinessID == businessID && (s.IsAvailable || !onlyAvailable) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *fakeCatalog) CreateService(_ context.Context, svc model.Service, _ int) (model.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	svc.ID = "svc-new"
	c.services[svc.ID] = svc
	return svc, nil
}

func (c *fakeCatalog) UpdateService(_ context.Context, svc model.Service) (model.Service, error) {
	if c.updateErr != nil {
		return model.Service{}, c.updateErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[svc.ID] = svc
	return svc, nil
}

type fakeInvalidator struct{ calls []string }

func (f *fakeInvalidator) Invalidate(_ context.Context, businessID string) error {
	f.calls = append(f.calls, businessID)
	return nil
}

// fakeBookings enforces one live booking per slot like the database index.
type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]booking.Booking
	keys     map[string]string
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: map[string]booking.Booking{}, keys: map[string]string{}}
}

func (f *fakeBookings) CreateBooking(_ context.Context, b booking.Booking, key string) (booking.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key != "" {
		if id, ok := f.keys[b.CustomerID+"/"+key]; ok {
			return f.bookings[id], true, nil
		}
	}
	for _, other := range f.bookings {
		if other.Status != booking.StatusCancelled && other.BusinessID == b.BusinessID &&
			other.ServiceID == b.ServiceID && other.Date == b.Date && other.Time == b.Time {
			return booking.Booking{}, false, booking.ErrConflict
		}
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.bookings[b.ID] = b
	if key != "" {
		f.keys[b.CustomerID+"/"+key] = b.ID
	}
	return b, false, nil
}

func (f *fakeBookings) Get(_ context.Context, id string) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) List(_ context.Context, filter booking.ListFilter) ([]booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.Booking
	for _, b := range f.bookings {
		if filter.BusinessID != "" && b.BusinessID != filter.BusinessID {
			continue
		}
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id string, to booking.Status, check func(booking.Booking) error) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if check != nil {
		if err := check(b); err != nil {
			return booking.Booking{}, err
		}
	}
	if err := booking.Transition(b.Status, to); err != nil {
		return booking.Booking{}, err
	}
	b.Status = to
	f.bookings[id] = b
	return b, nil
}

func (f *fakeBookings) AttachPaymentIntent(_ context.Context, id, intentID string, check func(booking.Booking) error) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if err := check(b); err != nil {
		return booking.Booking{}, err
	}
	b.PaymentStatus = booking.PaymentPending
	b.PaymentIntentID = intentID
	b.PaymentAttempts++
	f.bookings[id] = b
	return b, nil
}

func (f *fakeBookings) UpdatePaymentStatusByIntent(_ context.Context, intentID string, to booking.PaymentStatus) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, b := range f.bookings {
		if b.PaymentIntentID != intentID {
			continue
		}
		if b.PaymentStatus == to {
			return b, nil
		}
		if err := booking.PaymentTransition(b.PaymentStatus, to); err != nil {
			return booking.Booking{}, err
		}
		b.PaymentStatus = to
		f.bookings[id] = b
		return b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (f *fakeBookings) BookedIntervals(_ context.Context, businessID, serviceID string, date availability.CivilDate) ([]availability.Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []availability.Interval
	for _, b := range f.bookings {
		if b.Status != booking.StatusCancelled && b.BusinessID == businessID && b.ServiceID == serviceID && b.Date == date {
			out = append(out, b.Interval())
		}
	}
	return out, nil
}

type fakeReviews struct {
	reviews []booking.Review
}

func (f *fakeReviews) CreateReview(_ context.Context, r booking.Review) (booking.Review, error) {
	f.reviews = append(f.reviews, r)
	return r, nil
}

func (f *fakeReviews) ListReviews(_ context.Context, businessID string, _ int) ([]booking.Review, error) {
	var out []booking.Review
	for _, r := range f.reviews {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePayments struct {
	intents []payments.IntentRequest
	refunds []string
}

func (f *fakePayments) CreateIntent(_ context.Context, req payments.IntentRequest) (payments.Intent, error) {
	f.intents = append(f.intents, req)
	return payments.Intent{
		ID:           fmt.Sprintf("pi_%s_%d", req.BookingID, req.Attempt),
		ClientSecret: "secret",
		AmountMinor:  payments.MinorUnits(req.Amount, req.Currency),
		Currency:     req.Currency,
	}, nil
}

func (f *fakePayments) Refund(_ context.Context, bookingID, _ string) error {
	f.refunds = append(f.refunds, bookingID)
	return nil
}

type fakeInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeInbox) Forget(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, eventID)
	return nil
}

type fakeSettings struct {
	mu        sync.Mutex
	current   config.PlatformSettings
	updatedBy string
}

func (f *fakeSettings) Current(context.Context) (config.PlatformSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeSettings) Update(_ context.Context, s config.PlatformSettings, updatedBy string) (config.PlatformSettings, error) {
	if err := s.Validate(); err != nil {
		return config.PlatformSettings{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	f.updatedBy = updatedBy
	return s, nil
}
