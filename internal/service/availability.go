package service

import (
	"context"

	"github.com/stayhub/booking-core/internal/model"
)

// Reason strings surfaced to guests when a date range cannot be
// booked.  These are stable user-visible values, not debug text.
const (
	ReasonBlocked = "dates blocked by host"
	ReasonBooked  = "dates no longer available"
)

// Decision is the availability oracle's answer for one (room, range)
// query.  Reason is empty when Available is true.
type Decision struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// blockedDateCounter is the slice of BlockedDateRepo the oracle needs.
type blockedDateCounter interface {
	CountInRange(ctx context.Context, roomID uint64, dr model.DateRange) (int, error)
}

// bookingOverlapCounter is the slice of BookingRepo the oracle needs.
type bookingOverlapCounter interface {
	CountOverlapping(ctx context.Context, roomID uint64, dr model.DateRange, statuses []model.BookingStatus) (int, error)
}

// Availability answers "can this room be booked for these dates?".
// It is read-only and safe to call repeatedly: the room page, the
// booking page, lock acquisition and final confirmation all re-ask,
// because the answer can change between steps.  Every check is
// advisory; the lock manager and the booking lifecycle make the final
// authoritative call.
type Availability struct {
	blocked  blockedDateCounter
	bookings bookingOverlapCounter
}

// NewAvailability constructs the oracle from its two data sources.
func NewAvailability(blocked blockedDateCounter, bookings bookingOverlapCounter) *Availability {
	if blocked == nil || bookings == nil {
		panic("nil store passed to NewAvailability")
	}
	return &Availability{blocked: blocked, bookings: bookings}
}

// activeStatuses are the booking states that occupy dates.  Cancelled
// and completed bookings do not block future stays.
var activeStatuses = []model.BookingStatus{model.BookingPending, model.BookingConfirmed}

// Check reports whether the room can be booked for the given range.
// A range is unavailable when any calendar date inside it is blocked
// by the host, or when any pending or confirmed booking overlaps it.
func (a *Availability) Check(ctx context.Context, roomID uint64, dr model.DateRange) (Decision, error) {
	if err := dr.Validate(); err != nil {
		return Decision{}, err
	}
	blocked, err := a.blocked.CountInRange(ctx, roomID, dr)
	if err != nil {
		return Decision{}, err
	}
	if blocked > 0 {
		return decide(blocked, 0), nil
	}
	overlapping, err := a.bookings.CountOverlapping(ctx, roomID, dr, activeStatuses)
	if err != nil {
		return Decision{}, err
	}
	return decide(0, overlapping), nil
}

// decide is the pure core of the oracle: given the two counts, produce
// the decision.  Blocked dates win over booking overlaps so the guest
// sees the more actionable reason.
func decide(blockedCount, overlapCount int) Decision {
	switch {
	case blockedCount > 0:
		return Decision{Available: false, Reason: ReasonBlocked}
	case overlapCount > 0:
		return Decision{Available: false, Reason: ReasonBooked}
	default:
		return Decision{Available: true}
	}
}
