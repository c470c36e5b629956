package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/repository"
)

// ErrTransient marks infrastructure failures that were retried and
// still failed.  Handlers surface it as a generic 503-style outcome so
// callers can tell "the system is struggling" apart from "you lost a
// race", which arrives as a denied AcquireResult instead.
var ErrTransient = errors.New("transient storage error")

// LockStore is the persistence contract the manager drives.  The
// store must enforce the overlap rule atomically; the manager only
// adds retry policy and result shaping on top.
type LockStore interface {
	Acquire(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time, ttl time.Duration) (*model.ReservationLock, error)
	Release(ctx context.Context, roomID, guestID uint64, dr model.DateRange) error
	HasLive(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time) (bool, error)
}

// AcquireResult is the business outcome of an acquire attempt.  A
// denial is a normal result, not an error: the guest is told who to
// blame ("held by another guest") and can retry after the holder's
// TTL lapses.
type AcquireResult struct {
	Granted   bool      `json:"granted"`
	LockID    string    `json:"lock_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// LockManager grants short-lived exclusive holds on (room, date range)
// tuples so one guest's checkout cannot be pre-empted mid-flow.
type LockManager struct {
	locks LockStore
	ttl   time.Duration
	clock Clock
	log   *logrus.Logger
}

// NewLockManager constructs a manager with the tenant-configured TTL.
func NewLockManager(locks LockStore, ttl time.Duration, clock Clock, log *logrus.Logger) *LockManager {
	if locks == nil || clock == nil || log == nil {
		panic("nil dependency passed to NewLockManager")
	}
	return &LockManager{locks: locks, ttl: ttl, clock: clock, log: log}
}

// TTL returns the configured hold duration.
func (m *LockManager) TTL() time.Duration { return m.ttl }

// Acquire attempts to take (or refresh) a hold for the guest.  The
// conflict outcome is returned as a denied result; storage failures
// are retried once (the operation is idempotent) and then wrapped in
// ErrTransient.
func (m *LockManager) Acquire(ctx context.Context, roomID, guestID uint64, dr model.DateRange) (AcquireResult, error) {
	if err := dr.Validate(); err != nil {
		return AcquireResult{}, err
	}
	lock, err := m.locks.Acquire(ctx, roomID, guestID, dr, m.clock(), m.ttl)
	if errors.Is(err, repository.ErrLockHeld) {
		return AcquireResult{Granted: false, Reason: repository.ErrLockHeld.Error()}, nil
	}
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"room_id":  roomID,
			"guest_id": guestID,
		}).Warn("lock acquire failed, retrying once")
		lock, err = m.locks.Acquire(ctx, roomID, guestID, dr, m.clock(), m.ttl)
		if errors.Is(err, repository.ErrLockHeld) {
			return AcquireResult{Granted: false, Reason: repository.ErrLockHeld.Error()}, nil
		}
		if err != nil {
			return AcquireResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return AcquireResult{Granted: true, LockID: lock.ID, ExpiresAt: lock.ExpiresAt}, nil
}

// Release drops the guest's hold on the exact range.  It is an
// idempotent no-op when the lock is absent or expired, so both the
// cancellation path and the payment-confirmation path call it without
// checking first.
func (m *LockManager) Release(ctx context.Context, roomID, guestID uint64, dr model.DateRange) error {
	if err := m.locks.Release(ctx, roomID, guestID, dr); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"room_id":  roomID,
			"guest_id": guestID,
		}).Warn("lock release failed")
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

// HasLive reports whether the guest holds a live lock on the exact
// range right now.
func (m *LockManager) HasLive(ctx context.Context, roomID, guestID uint64, dr model.DateRange) (bool, error) {
	return m.locks.HasLive(ctx, roomID, guestID, dr, m.clock())
}
