package model

import "time"

// VerifiedSlip is one entry in the append-only anti-fraud ledger of
// payment proofs.  The fingerprint (a stable hash of the proof's bytes
// or canonical URL) is globally unique, which is what prevents the same
// slip from being submitted for two different bookings.  When the
// external verifier has responded, ExternalRef carries the verifier's
// transaction reference, also unique when present.
type VerifiedSlip struct {
	ID          uint64    `json:"id"`                     // verified_slips.id
	Fingerprint string    `json:"fingerprint"`            // sha256 hex of the proof artifact
	BookingID   uint64    `json:"booking_id"`             // booking the proof was submitted for
	Amount      float64   `json:"amount"`                 // amount the guest claims to have paid
	ExternalRef *string   `json:"external_ref,omitempty"` // verifier transaction reference (nullable)
	RawPayload  *string   `json:"-"`                      // raw verifier response for audit
	CreatedAt   time.Time `json:"created_at"`             // verified_slips.created_at
}
