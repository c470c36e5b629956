package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/queue"
	"github.com/stayhub/booking-core/internal/repository"
)

// Business outcomes of lifecycle operations.  Handlers translate these
// into the documented error codes; none of them indicate a broken
// system.
var (
	ErrUnavailable     = errors.New("dates no longer available")
	ErrNoActiveLock    = errors.New("no active reservation lock for these dates")
	ErrRoomInactive    = errors.New("room is not accepting bookings")
	ErrMinStay         = errors.New("stay is shorter than the room minimum")
	ErrCapacity        = errors.New("guest count exceeds room capacity")
	ErrWindowExpired   = errors.New("cancellation window has expired")
	ErrAlreadyTerminal = errors.New("booking is already cancelled or completed")
	ErrReasonRequired  = errors.New("a cancellation reason is required")
)

// BookingStore is the persistence contract for bookings.  Implemented
// by repository.BookingRepo; faked in tests.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, from []model.BookingStatus, to model.BookingStatus, reason *string) (bool, error)
	SetProofURL(ctx context.Context, id uint64, proofURL string) error
	ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error)
	CompleteElapsed(ctx context.Context, now time.Time) (int64, error)
}

// RoomStore is the slice of RoomRepo the lifecycle needs.
type RoomStore interface {
	GetByID(ctx context.Context, roomID uint64) (*model.Room, error)
}

// Notifier is the fire-and-forget contract with the notification
// dispatcher.  Implementations must not block meaningfully and have no
// return value for the caller to depend on; delivery failures are the
// dispatcher's problem to log.
type Notifier interface {
	BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent)
	BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent)
	FraudAlert(ctx context.Context, ev queue.FraudAlertEvent)
}

// Lifecycle is the authoritative state machine for bookings.  Every
// transition is a compare-and-swap on the current status, so two
// concurrent transitions for the same booking can never both apply,
// across any number of server processes.
type Lifecycle struct {
	bookings     BookingStore
	rooms        RoomStore
	availability *Availability
	locks        *LockManager
	notify       Notifier
	clock        Clock
	requireLock  bool
	cancelWindow time.Duration
	log          *logrus.Logger
}

// NewLifecycle wires the state machine to its collaborators.
// requireLock gates booking creation on a live reservation lock owned
// by the same guest; cancelWindow is how long after creation a guest
// may cancel on their own.
func NewLifecycle(bookings BookingStore, rooms RoomStore, availability *Availability, locks *LockManager,
	notify Notifier, clock Clock, requireLock bool, cancelWindow time.Duration, log *logrus.Logger) *Lifecycle {
	if bookings == nil || rooms == nil || availability == nil || locks == nil || notify == nil || clock == nil || log == nil {
		panic("nil dependency passed to NewLifecycle")
	}
	return &Lifecycle{
		bookings:     bookings,
		rooms:        rooms,
		availability: availability,
		locks:        locks,
		notify:       notify,
		clock:        clock,
		requireLock:  requireLock,
		cancelWindow: cancelWindow,
		log:          log,
	}
}

// CreateParams carries guest input for a new booking.
type CreateParams struct {
	RoomID      uint64
	GuestID     uint64
	Dates       model.DateRange
	Guests      uint32
	AddOnAmount float64 // optional extra services, already priced
	Notes       *string
}

// Create opens a pending booking.  Availability is re-checked here
// since earlier checks on the room and booking pages are advisory
// only, and, when lock-gated checkout is enabled, the guest must hold a live
// lock on exactly these dates.  The total is nights * nightly price
// plus any add-on amount; no tax or fee logic lives here.
func (s *Lifecycle) Create(ctx context.Context, p CreateParams) (*model.Booking, error) {
	if err := p.Dates.Validate(); err != nil {
		return nil, err
	}
	room, err := s.rooms.GetByID(ctx, p.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, ErrRoomInactive
	}
	if p.Guests == 0 || p.Guests > room.Capacity {
		return nil, ErrCapacity
	}
	if p.Dates.Nights() < int(room.MinStay) {
		return nil, ErrMinStay
	}
	dec, err := s.availability.Check(ctx, p.RoomID, p.Dates)
	if err != nil {
		return nil, err
	}
	if !dec.Available {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, dec.Reason)
	}
	if s.requireLock {
		live, err := s.locks.HasLive(ctx, p.RoomID, p.GuestID, p.Dates)
		if err != nil {
			return nil, err
		}
		if !live {
			return nil, ErrNoActiveLock
		}
	}
	b := &model.Booking{
		TenantID:      room.TenantID,
		RoomID:        p.RoomID,
		GuestID:       p.GuestID,
		ReferenceCode: uuid.NewString(),
		Dates:         p.Dates,
		Guests:        p.Guests,
		TotalAmount:   float64(p.Dates.Nights())*room.NightlyPrice + p.AddOnAmount,
		Status:        model.BookingPending,
		Notes:         p.Notes,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Confirm transitions pending → confirmed.  It is idempotent:
// confirming an already-confirmed or already-cancelled booking is a
// no-op success, which protects against duplicate verification
// triggers.  The confirmed notification is emitted only when the CAS
// actually applied, so a double confirm can never send it twice.
func (s *Lifecycle) Confirm(ctx context.Context, bookingID uint64) (*model.Booking, bool, error) {
	changed, err := s.bookings.UpdateStatus(ctx, bookingID,
		[]model.BookingStatus{model.BookingPending}, model.BookingConfirmed, nil)
	if err != nil {
		return nil, false, err
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.notify.BookingConfirmed(ctx, queue.BookingConfirmedEvent{
			BookingID:     b.ID,
			ReferenceCode: b.ReferenceCode,
			TenantID:      b.TenantID,
			RoomID:        b.RoomID,
			GuestID:       b.GuestID,
			CheckIn:       b.Dates.CheckIn.Format(model.DateLayout),
			CheckOut:      b.Dates.CheckOut.Format(model.DateLayout),
			Guests:        b.Guests,
			TotalAmount:   b.TotalAmount,
			ConfirmedAt:   s.clock().Format(time.RFC3339),
		})
	}
	return b, changed, nil
}

// CancelByGuest cancels a booking on the owner's request.  Permitted
// only while the booking is pending or confirmed and no more than the
// cancellation window after creation; a reason is mandatory.  The
// matching reservation lock, if any, is released.
func (s *Lifecycle) CancelByGuest(ctx context.Context, bookingID, guestID uint64, reason string) (*model.Booking, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != guestID {
		return nil, repository.ErrForbidden
	}
	if b.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if s.clock().Sub(b.CreatedAt) > s.cancelWindow {
		return nil, ErrWindowExpired
	}
	changed, err := s.bookings.UpdateStatus(ctx, bookingID,
		[]model.BookingStatus{model.BookingPending, model.BookingConfirmed}, model.BookingCancelled, &reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race against another transition; re-read to report why.
		return nil, ErrAlreadyTerminal
	}
	s.releaseLock(ctx, b)
	b, err = s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.notify.BookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		TenantID:      b.TenantID,
		RoomID:        b.RoomID,
		GuestID:       b.GuestID,
		Reason:        reason,
		BySystem:      false,
		CancelledAt:   s.clock().Format(time.RFC3339),
	})
	return b, nil
}

// CancelBySystem cancels a booking with a system-authored reason,
// bypassing the guest cancellation window.  Used by the verification
// pipeline on fraud or amount-mismatch determinations.  Cancelling an
// already-terminal booking is a no-op; the boolean reports whether the
// transition actually applied.
func (s *Lifecycle) CancelBySystem(ctx context.Context, bookingID uint64, reason string) (bool, error) {
	changed, err := s.bookings.UpdateStatus(ctx, bookingID,
		[]model.BookingStatus{model.BookingPending, model.BookingConfirmed}, model.BookingCancelled, &reason)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		// The cancel applied; a failed re-read only costs the lock release
		// and notification detail.
		s.log.WithError(err).WithField("booking_id", bookingID).Warn("re-read after system cancel failed")
		return true, nil
	}
	s.releaseLock(ctx, b)
	s.notify.BookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		TenantID:      b.TenantID,
		RoomID:        b.RoomID,
		GuestID:       b.GuestID,
		Reason:        reason,
		BySystem:      true,
		CancelledAt:   s.clock().Format(time.RFC3339),
	})
	return true, nil
}

// Get returns a booking, enforcing ownership.
func (s *Lifecycle) Get(ctx context.Context, bookingID, guestID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.GuestID != guestID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// ListByGuest returns the guest's bookings, newest first.
func (s *Lifecycle) ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	return s.bookings.ListByGuest(ctx, guestID)
}

// CompleteElapsed flips confirmed bookings whose check-out has passed
// to completed.  Meant for a periodic batch caller.
func (s *Lifecycle) CompleteElapsed(ctx context.Context) (int64, error) {
	return s.bookings.CompleteElapsed(ctx, s.clock())
}

// SetProofURL records the proof reference on a booking on behalf of
// the verification pipeline.
func (s *Lifecycle) SetProofURL(ctx context.Context, bookingID uint64, proofURL string) error {
	return s.bookings.SetProofURL(ctx, bookingID, proofURL)
}

// releaseLock drops the booking's matching reservation lock.  Failure
// is logged only: the lock will lapse by TTL anyway.
func (s *Lifecycle) releaseLock(ctx context.Context, b *model.Booking) {
	if err := s.locks.Release(ctx, b.RoomID, b.GuestID, b.Dates); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("failed to release reservation lock")
	}
}
