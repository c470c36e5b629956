package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/queue"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/service"
)

type stubBookings struct {
	byID map[uint64]*model.Booking
}

func (s *stubBookings) Create(ctx context.Context, b *model.Booking) error { return nil }

func (s *stubBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *stubBookings) UpdateStatus(ctx context.Context, id uint64, from []model.BookingStatus, to model.BookingStatus, reason *string) (bool, error) {
	b, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if b.Status == st {
			b.Status = to
			if reason != nil {
				b.CancelReason = reason
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *stubBookings) SetProofURL(ctx context.Context, id uint64, proofURL string) error {
	return nil
}

func (s *stubBookings) ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	return nil, nil
}

func (s *stubBookings) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type stubRooms struct{}

func (stubRooms) GetByID(ctx context.Context, roomID uint64) (*model.Room, error) {
	return nil, repository.ErrNotFound
}

type stubCounters struct{}

func (stubCounters) CountInRange(ctx context.Context, roomID uint64, dr model.DateRange) (int, error) {
	return 0, nil
}

func (stubCounters) CountOverlapping(ctx context.Context, roomID uint64, dr model.DateRange, statuses []model.BookingStatus) (int, error) {
	return 0, nil
}

type stubLocks struct{}

func (stubLocks) Acquire(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time, ttl time.Duration) (*model.ReservationLock, error) {
	return nil, repository.ErrLockHeld
}

func (stubLocks) Release(ctx context.Context, roomID, guestID uint64, dr model.DateRange) error {
	return nil
}

func (stubLocks) HasLive(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time) (bool, error) {
	return false, nil
}

type stubNotifier struct{}

func (stubNotifier) BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) {}
func (stubNotifier) BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) {}
func (stubNotifier) FraudAlert(ctx context.Context, ev queue.FraudAlertEvent)             {}

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newBookingHandler(t *testing.T, bookings *stubBookings, now time.Time) *BookingHandler {
	t.Helper()
	availability := service.NewAvailability(stubCounters{}, stubCounters{})
	clock := service.Clock(func() time.Time { return now })
	lockMgr := service.NewLockManager(stubLocks{}, 15*time.Minute, clock, quietLog())
	lc := service.NewLifecycle(bookings, stubRooms{}, availability, lockMgr, stubNotifier{},
		clock, true, 24*time.Hour, quietLog())
	return NewBookingHandler(lc)
}

func cancelRequest(t *testing.T, h *BookingHandler, bookingID, userID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/"+bookingID+"/cancel",
		strings.NewReader(`{"reason":"plans changed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/bookings/:id/cancel")
	c.SetParamNames("id")
	c.SetParamValues(bookingID)
	c.Set("user_id", userID)
	require.NoError(t, h.Cancel(c))
	return rec
}

func TestBookingHandlerCancel(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	booking := func(createdAt time.Time) *stubBookings {
		return &stubBookings{byID: map[uint64]*model.Booking{
			1: {
				ID: 1, TenantID: 10, RoomID: 1, GuestID: 100,
				Dates:     model.DateRange{CheckIn: now.AddDate(0, 0, 8), CheckOut: now.AddDate(0, 0, 10)},
				Status:    model.BookingPending,
				CreatedAt: createdAt,
			},
		}}
	}

	t.Run("WithinWindow", func(t *testing.T) {
		h := newBookingHandler(t, booking(now.Add(-23*time.Hour)), now)
		rec := cancelRequest(t, h, "1", "100")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("WindowExpired", func(t *testing.T) {
		h := newBookingHandler(t, booking(now.Add(-25*time.Hour)), now)
		rec := cancelRequest(t, h, "1", "100")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "window_expired")
	})

	t.Run("NotFound", func(t *testing.T) {
		h := newBookingHandler(t, booking(now), now)
		rec := cancelRequest(t, h, "99", "100")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_found")
	})

	t.Run("NotOwner", func(t *testing.T) {
		h := newBookingHandler(t, booking(now), now)
		rec := cancelRequest(t, h, "1", "200")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
