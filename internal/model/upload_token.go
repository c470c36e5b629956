package model

import "time"

// UploadToken lets a guest upload a payment proof from a second,
// unauthenticated device (typically a phone that scanned a QR code).
// The token string itself is the credential: random, short-lived and
// single-use.  The booking-attempt parameters are snapshotted onto the
// token at issue time so the anonymous device never needs access to
// the guest's session.  Once consumed, the resulting proof URL is
// stored on the token record and the initiating device learns about
// it by polling.
type UploadToken struct {
	ID          uint64    `json:"id"`                  // upload_tokens.id
	Token       string    `json:"token"`               // opaque random credential
	GuestID     uint64    `json:"guest_id"`            // guest who issued the token
	RoomID      uint64    `json:"room_id"`             // room of the booking attempt
	Dates       DateRange `json:"dates"`               // dates of the booking attempt
	Guests      uint32    `json:"guests"`              // guest count of the attempt
	TotalAmount float64   `json:"total_amount"`        // price quoted for the attempt
	Used        bool      `json:"used"`                // set once a proof has been uploaded
	ProofURL    *string   `json:"proof_url,omitempty"` // where the uploaded proof was stored
	ExpiresAt   time.Time `json:"expires_at"`          // token expiry (UTC)
	CreatedAt   time.Time `json:"created_at"`          // upload_tokens.created_at
}

// Expired reports whether the token is past its expiry at the given
// instant.  Expired tokens are treated as absent (lazy expiry).
func (t UploadToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
