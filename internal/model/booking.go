package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.  A
// booking starts as pending, is confirmed by the payment verification
// pipeline, and ends as either completed (stay finished) or cancelled.
// Cancelled and completed are terminal: no transition leaves them.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// Booking represents a reservation of a room for a date range.  Bookings
// are never physically deleted; cancellation is a status change so the
// audit history survives.  All mutations go through the lifecycle
// service, which guards every transition with a conditional update
// keyed on the current status.
type Booking struct {
	ID            uint64        `json:"id"`                        // bookings.id
	TenantID      uint64        `json:"tenant_id"`                 // owning tenant
	RoomID        uint64        `json:"room_id"`                   // booked room
	GuestID       uint64        `json:"guest_id"`                  // guest who created the booking
	ReferenceCode string        `json:"reference_code"`            // opaque public identifier
	Dates         DateRange     `json:"dates"`                     // check-in / check-out
	Guests        uint32        `json:"guests"`                    // number of guests staying
	TotalAmount   float64       `json:"total_amount"`              // nights * nightly price + add-ons
	Status        BookingStatus `json:"status"`                    // lifecycle state
	ProofURL      *string       `json:"payment_proof_url,omitempty"` // uploaded payment proof, when present
	Notes         *string       `json:"notes,omitempty"`           // free-form guest notes
	CancelReason  *string       `json:"cancel_reason,omitempty"`   // set on cancellation (guest or system)
	CreatedAt     time.Time     `json:"created_at"`                // bookings.created_at
	UpdatedAt     time.Time     `json:"updated_at"`                // bookings.updated_at
}
