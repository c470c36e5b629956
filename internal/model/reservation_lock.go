package model

import "time"

// ReservationLock is a time-boxed exclusive hold on a (room, date
// range) granted to one guest while they complete checkout.  Locks
// expire passively: any row whose ExpiresAt has passed is treated as
// absent by the next acquire or availability check, so no background
// sweeper is required for correctness.
//
// At most one live lock may exist per overlapping date range per room.
// Disjoint ranges of the same room may be held by different guests
// concurrently.
type ReservationLock struct {
	ID        string    `json:"lock_id"`    // reservation_locks.id (uuid)
	RoomID    uint64    `json:"room_id"`    // locked room
	GuestID   uint64    `json:"guest_id"`   // owning guest
	Dates     DateRange `json:"dates"`      // held date range
	ExpiresAt time.Time `json:"expires_at"` // hold expiry (UTC)
	CreatedAt time.Time `json:"created_at"` // reservation_locks.created_at
}

// Live reports whether the lock is still active at the given instant.
func (l ReservationLock) Live(now time.Time) bool {
	return l.ExpiresAt.After(now)
}
