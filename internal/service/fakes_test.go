package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/queue"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/verifier"
)

// quietLogger keeps test output clean.
func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func mustRange(t1, t2 string) model.DateRange {
	dr, err := model.ParseDateRange(t1, t2)
	if err != nil {
		panic(err)
	}
	return dr
}

// ---- booking store ----

type fakeBookingStore struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking
	now      time.Time
}

func newFakeBookingStore(now time.Time) *fakeBookingStore {
	return &fakeBookingStore{bookings: map[uint64]*model.Booking{}, now: now}
}

func (f *fakeBookingStore) Create(ctx context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = f.now
	b.UpdatedAt = f.now
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) UpdateStatus(ctx context.Context, id uint64, from []model.BookingStatus, to model.BookingStatus, reason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			if reason != nil {
				b.CancelReason = reason
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) SetProofURL(ctx context.Context, id uint64, proofURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.ProofURL = &proofURL
	}
	return nil
}

func (f *fakeBookingStore) ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.GuestID == guestID {
			out = append(out, *b)
		}
	}
	return out, nil
}

// CountOverlapping mirrors the repository's half-open overlap query so
// the availability oracle can run against this store directly.
func (f *fakeBookingStore) CountOverlapping(ctx context.Context, roomID uint64, dr model.DateRange, statuses []model.BookingStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.RoomID != roomID || !b.Dates.Overlaps(dr) {
			continue
		}
		for _, s := range statuses {
			if b.Status == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakeBookingStore) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.Status == model.BookingConfirmed && !b.Dates.CheckOut.After(now) {
			b.Status = model.BookingCompleted
			n++
		}
	}
	return n, nil
}

// ---- room store ----

type fakeRoomStore struct {
	rooms map[uint64]*model.Room
}

func (f *fakeRoomStore) GetByID(ctx context.Context, roomID uint64) (*model.Room, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ---- availability counters ----

type fakeCounters struct {
	blocked int
	overlap int
	err     error
}

func (f *fakeCounters) CountInRange(ctx context.Context, roomID uint64, dr model.DateRange) (int, error) {
	return f.blocked, f.err
}

func (f *fakeCounters) CountOverlapping(ctx context.Context, roomID uint64, dr model.DateRange, statuses []model.BookingStatus) (int, error) {
	return f.overlap, f.err
}

// ---- lock store ----

// fakeLockStore keeps live locks in memory with the same overlap
// semantics the real repository enforces.
type fakeLockStore struct {
	mu       sync.Mutex
	locks    []*model.ReservationLock
	failures int // number of leading Acquire calls to fail with a storage error
	calls    int
}

var errStorage = errors.New("storage blew up")

func (f *fakeLockStore) Acquire(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time, ttl time.Duration) (*model.ReservationLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errStorage
	}
	var live []*model.ReservationLock
	for _, l := range f.locks {
		if l.Live(now) {
			live = append(live, l)
		}
	}
	f.locks = live
	for _, l := range f.locks {
		if l.RoomID != roomID {
			continue
		}
		if l.GuestID == guestID && l.Dates.Equal(dr) {
			l.ExpiresAt = now.Add(ttl)
			cp := *l
			return &cp, nil
		}
		if l.Dates.Overlaps(dr) {
			return nil, repository.ErrLockHeld
		}
	}
	l := &model.ReservationLock{
		ID:        "lock-1",
		RoomID:    roomID,
		GuestID:   guestID,
		Dates:     dr,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	f.locks = append(f.locks, l)
	cp := *l
	return &cp, nil
}

func (f *fakeLockStore) Release(ctx context.Context, roomID, guestID uint64, dr model.DateRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keep []*model.ReservationLock
	for _, l := range f.locks {
		if l.RoomID == roomID && l.GuestID == guestID && l.Dates.Equal(dr) {
			continue
		}
		keep = append(keep, l)
	}
	f.locks = keep
	return nil
}

func (f *fakeLockStore) HasLive(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.locks {
		if l.RoomID == roomID && l.GuestID == guestID && l.Dates.Equal(dr) && l.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

// ---- notifier ----

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	cancelled []queue.BookingCancelledEvent
	fraud     []queue.FraudAlertEvent
}

func (f *fakeNotifier) BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, ev)
}

func (f *fakeNotifier) BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ev)
}

func (f *fakeNotifier) FraudAlert(ctx context.Context, ev queue.FraudAlertEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fraud = append(f.fraud, ev)
}

// ---- slip store ----

type fakeSlipStore struct {
	mu           sync.Mutex
	fingerprints map[string]uint64 // fingerprint -> booking id
	refs         map[string]bool   // external refs already attached
	attachDup    bool              // force AttachExternal to report reuse
}

func newFakeSlipStore() *fakeSlipStore {
	return &fakeSlipStore{fingerprints: map[string]uint64{}, refs: map[string]bool{}}
}

func (f *fakeSlipStore) Insert(ctx context.Context, s *model.VerifiedSlip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.fingerprints[s.Fingerprint]; dup {
		return repository.ErrDuplicateSlip
	}
	f.fingerprints[s.Fingerprint] = s.BookingID
	return nil
}

func (f *fakeSlipStore) AttachExternal(ctx context.Context, fingerprint, externalRef, rawPayload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachDup || (externalRef != "" && f.refs[externalRef]) {
		return repository.ErrDuplicateSlip
	}
	if externalRef != "" {
		f.refs[externalRef] = true
	}
	return nil
}

// ---- verifier ----

type fakeVerifier struct {
	res *verifier.Result
	err error
}

func (f *fakeVerifier) Verify(ctx context.Context, proofRef string, claimedAmount float64) (*verifier.Result, error) {
	return f.res, f.err
}
