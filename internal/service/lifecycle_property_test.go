package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhub/booking-core/internal/model"
)

// checkoutFixture wires the lifecycle and pipeline against the
// in-memory booking store's own overlap counting, so availability
// decisions reflect the bookings actually created instead of stubbed
// counts.
type checkoutFixture struct {
	bookings *fakeBookingStore
	locks    *fakeLockStore
	notify   *fakeNotifier
	lc       *Lifecycle
	p        *Pipeline
	now      time.Time
}

func newCheckoutFixture(t *testing.T, requireLock bool) *checkoutFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bookings := newFakeBookingStore(now)
	rooms := &fakeRoomStore{rooms: map[uint64]*model.Room{
		1: {ID: 1, TenantID: 10, Name: "Sea View", Capacity: 4, NightlyPrice: 120, MinStay: 2, Active: true},
	}}
	locks := &fakeLockStore{}
	notify := &fakeNotifier{}
	availability := NewAvailability(&fakeCounters{}, bookings)
	lockMgr := NewLockManager(locks, 15*time.Minute, fixedClock(now), quietLogger())
	lc := NewLifecycle(bookings, rooms, availability, lockMgr, notify, fixedClock(now),
		requireLock, 24*time.Hour, quietLogger())
	slips := newFakeSlipStore()
	p := NewPipeline(slips, lc, lockMgr, nil, notify, fixedClock(now), 1.0, 24*time.Hour, quietLogger())
	p.launch = func(fn func()) { fn() }
	return &checkoutFixture{bookings: bookings, locks: locks, notify: notify, lc: lc, p: p, now: now}
}

// TestBookingNonOverlapProperty drives booking creation with randomly
// generated date ranges and checks that no two pending or confirmed
// bookings on the room ever overlap, whatever mix of creations,
// confirmations and cancellations occurred along the way.
func TestBookingNonOverlapProperty(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, false)
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	created, denied := 0, 0
	for i := 0; i < 300; i++ {
		start := base.AddDate(0, 0, rng.Intn(28))
		end := start.AddDate(0, 0, 2+rng.Intn(5))
		dr := model.DateRange{CheckIn: start, CheckOut: end}

		b, err := f.lc.Create(ctx, CreateParams{
			RoomID:  1,
			GuestID: uint64(100 + rng.Intn(5)),
			Dates:   dr,
			Guests:  uint32(1 + rng.Intn(4)),
		})
		if err != nil {
			require.ErrorIs(t, err, ErrUnavailable)
			denied++
			continue
		}
		created++
		switch rng.Intn(5) {
		case 0, 1:
			_, _, err := f.lc.Confirm(ctx, b.ID)
			require.NoError(t, err)
		case 2:
			_, err := f.lc.CancelByGuest(ctx, b.ID, b.GuestID, "plans changed")
			require.NoError(t, err)
		}
	}
	require.NotZero(t, created, "random generation produced no bookings")
	require.NotZero(t, denied, "random generation produced no conflicts")

	var active []model.Booking
	for _, b := range f.bookings.bookings {
		if b.Status == model.BookingPending || b.Status == model.BookingConfirmed {
			active = append(active, *b)
		}
	}
	require.NotEmpty(t, active)
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			assert.False(t, active[i].Dates.Overlaps(active[j].Dates),
				"bookings %d and %d overlap: %v vs %v",
				active[i].ID, active[j].ID, active[i].Dates, active[j].Dates)
		}
	}
}

// TestCheckoutContention walks two guests through a contended checkout:
// A holds the dates, B is turned away, A pays and the hold is
// released, after which B can take a hold again.
func TestCheckoutContention(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, true)
	dr := mustRange("2025-06-10", "2025-06-12")

	resA, err := f.lc.locks.Acquire(ctx, 1, 100, dr)
	require.NoError(t, err)
	require.True(t, resA.Granted)

	resB, err := f.lc.locks.Acquire(ctx, 1, 200, dr)
	require.NoError(t, err)
	assert.False(t, resB.Granted)
	assert.Equal(t, "held by another guest", resB.Reason)

	b, err := f.lc.Create(ctx, CreateParams{RoomID: 1, GuestID: 100, Dates: dr, Guests: 2})
	require.NoError(t, err)

	confirmed, err := f.p.SubmitProof(ctx, b.ID, 100, "slip-abc", b.TotalAmount)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)

	held, err := f.locks.HasLive(ctx, 1, 100, dr, f.now)
	require.NoError(t, err)
	assert.False(t, held, "confirming the booking must release the hold")

	resB, err = f.lc.locks.Acquire(ctx, 1, 200, dr)
	require.NoError(t, err)
	assert.True(t, resB.Granted)

	// The dates themselves are taken now; only the hold is free again.
	_, err = f.lc.Create(ctx, CreateParams{RoomID: 1, GuestID: 200, Dates: dr, Guests: 2})
	assert.ErrorIs(t, err, ErrUnavailable)
}
