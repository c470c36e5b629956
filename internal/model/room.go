package model

import "time"

// Room represents a bookable unit belonging to a tenant's property.
// Rooms are treated as immutable during a booking transaction: price
// and minimum stay are read once when the booking is created.
type Room struct {
	ID           uint64    `json:"id"`             // rooms.id
	TenantID     uint64    `json:"tenant_id"`      // owning tenant
	Name         string    `json:"name"`           // display name
	Capacity     uint32    `json:"capacity"`       // maximum number of guests
	NightlyPrice float64   `json:"nightly_price"`  // price per night in the tenant's currency
	MinStay      uint32    `json:"min_stay_nights"` // minimum nights per booking
	Active       bool      `json:"active"`         // inactive rooms cannot be booked
	CreatedAt    time.Time `json:"created_at"`     // rooms.created_at
}

// BlockedDate marks a single calendar date a host has made unavailable
// for a room, independent of any booking.
type BlockedDate struct {
	ID     uint64    `json:"id"`      // blocked_dates.id
	RoomID uint64    `json:"room_id"` // blocked_dates.room_id
	Day    time.Time `json:"day"`     // the blocked calendar date (UTC midnight)
}
