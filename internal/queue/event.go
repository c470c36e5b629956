// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  All three are declared durable by both publisher and
// consumer so messages survive broker restarts.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueFraudAlert       = "fraud.alert"
)

// BookingConfirmedEvent is published when a booking transitions to
// confirmed.  It carries enough information for downstream consumers
// to notify the host and guest without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64  `json:"booking_id"`
	ReferenceCode string  `json:"reference_code"`
	TenantID      uint64  `json:"tenant_id"`
	RoomID        uint64  `json:"room_id"`
	GuestID       uint64  `json:"guest_id"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	Guests        uint32  `json:"guests"`
	TotalAmount   float64 `json:"total_amount"`
	ConfirmedAt   string  `json:"confirmed_at"`
}

// BookingCancelledEvent is published for both guest-initiated and
// system-initiated cancellations.  BySystem distinguishes the two so
// consumers can word the notification accordingly.
type BookingCancelledEvent struct {
	BookingID     uint64 `json:"booking_id"`
	ReferenceCode string `json:"reference_code"`
	TenantID      uint64 `json:"tenant_id"`
	RoomID        uint64 `json:"room_id"`
	GuestID       uint64 `json:"guest_id"`
	Reason        string `json:"reason"`
	BySystem      bool   `json:"by_system"`
	CancelledAt   string `json:"cancelled_at"`
}

// FraudAlertEvent is a high-priority alert published when background
// verification classifies a payment proof as fraudulent or as an
// amount mismatch.  It is distinct from the ordinary cancellation
// notification: hosts route these to a different channel.
type FraudAlertEvent struct {
	BookingID      uint64  `json:"booking_id"`
	TenantID       uint64  `json:"tenant_id"`
	Fingerprint    string  `json:"fingerprint"`
	Classification string  `json:"classification"` // "fraud" or "amount_mismatch"
	Reason         string  `json:"reason"`
	ClaimedAmount  float64 `json:"claimed_amount"`
	VerifiedAmount float64 `json:"verified_amount,omitempty"`
	DetectedAt     string  `json:"detected_at"`
}
