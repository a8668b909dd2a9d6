package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pointme/pointme/services/booking-service/internal/booking"
)

type PendingStore interface {
	PendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]booking.Booking, error)
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, to booking.PaymentStatus) (booking.Booking, error)
}

type IntentLookup interface {
	IntentOutcome(ctx context.Context, intentID string) (booking.PaymentStatus, bool, error)
}

type Refunder interface {
	Refund(ctx context.Context, bookingID, intentID string) error
}

// Lease is a held reconcile lock. Alive fails once the lock may have been
// lost, for example when its database session dropped.
type Lease interface {
	Alive(ctx context.Context) error
	Release()
}

// LockFunc tries to become the single reconciling instance.
type LockFunc func(ctx context.Context) (lease Lease, ok bool, err error)

// Reconciler settles bookings whose payment stayed pending because a
// webhook was lost. The provider is the source of truth.
type Reconciler struct {
	store      PendingStore
	intents    IntentLookup
	refunds    Refunder
	lock       LockFunc
	logger     *slog.Logger
	staleAfter time.Duration
	batchSize  int
	retryEvery time.Duration
	now        func() time.Time
}

type ReconcilerConfig struct {
	StaleAfter time.Duration
	BatchSize  int
	// Refunds, when set, returns charges that settle on cancelled bookings.
	Refunds Refunder
	// LockRetry is the wait between lock attempts.
	LockRetry time.Duration
}

func NewReconciler(store PendingStore, intents IntentLookup, lock LockFunc, logger *slog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LockRetry <= 0 {
		cfg.LockRetry = 30 * time.Second
	}
	return &Reconciler{
		store:      store,
		intents:    intents,
		refunds:    cfg.Refunds,
		lock:       lock,
		logger:     logger,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		retryEvery: cfg.LockRetry,
		now:        time.Now,
	}
}

// Run reconciles every interval while holding the lock. Instances that do
// not get the lock retry until ctx is cancelled. The lease is checked before
// every pass and a lost lock sends the instance back to acquiring.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	for {
		lease, ok := r.acquire(ctx)
		if !ok {
			return
		}
		r.hold(ctx, lease, interval)
		lease.Release()
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Reconciler) acquire(ctx context.Context) (Lease, bool) {
	for {
		lease, ok, err := r.lock(ctx)
		if err == nil && ok {
			r.logger.Info("payment reconcile: lock acquired")
			return lease, true
		}
		if err != nil {
			r.logger.Error("payment reconcile: lock attempt failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(r.retryEvery):
		}
	}
}

// hold reconciles until ctx is done or the lease is lost.
func (r *Reconciler) hold(ctx context.Context, lease Lease, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := lease.Alive(ctx); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("payment reconcile: lock lost", "err", err)
			}
			return
		}
		r.ReconcileOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileOnce processes one batch and returns how many bookings changed.
func (r *Reconciler) ReconcileOnce(ctx context.Context) int {
	pending, err := r.store.PendingPayments(ctx, r.now().Add(-r.staleAfter), r.batchSize)
	if err != nil {
		r.logger.Error("payment reconcile: list pending failed", "err", err)
		return 0
	}
	changed := 0
	for _, b := range pending {
		if ctx.Err() != nil {
			return changed
		}
		status, settled, err := r.intents.IntentOutcome(ctx, b.PaymentIntentID)
		if err != nil {
			r.logger.Warn("payment reconcile: lookup failed", "err", err, "booking_id", b.ID)
			continue
		}
		if !settled {
			continue
		}
		updated, err := r.store.UpdatePaymentStatusByIntent(ctx, b.PaymentIntentID, status)
		if err != nil {
			if !errors.Is(err, booking.ErrIllegalTransition) {
				r.logger.Warn("payment reconcile: apply failed", "err", err, "booking_id", b.ID)
			}
			continue
		}
		r.logger.Info("payment reconcile: booking settled", "booking_id", b.ID, "payment_status", status)
		changed++
		if NeedsRefund(updated) && r.refunds != nil {
			if err := r.refunds.Refund(ctx, updated.ID, updated.PaymentIntentID); err != nil {
				r.logger.Error("payment reconcile: refund failed", "err", err, "booking_id", updated.ID)
				continue
			}
			r.logger.Info("payment reconcile: refund requested for cancelled booking", "booking_id", updated.ID)
		}
	}
	return changed
}
