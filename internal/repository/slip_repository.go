package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stayhub/booking-core/internal/model"
)

// SlipRepo provides data access to the verified_slips ledger.  The
// table is append-only: rows are inserted when a proof is submitted
// and enriched once with the external verifier's response, never
// deleted.  The unique index on fingerprint is what makes the
// duplicate check and the insert effectively atomic per fingerprint;
// two racing submissions with the same proof cannot both succeed.
type SlipRepo struct {
	db *sql.DB
}

// NewSlipRepo returns a new SlipRepo bound to the given database.
func NewSlipRepo(db *sql.DB) *SlipRepo { return &SlipRepo{db: db} }

// Insert records a new slip entry.  ErrDuplicateSlip is returned when
// the fingerprint already exists in the ledger, regardless of which
// booking the earlier submission targeted.
func (r *SlipRepo) Insert(ctx context.Context, s *model.VerifiedSlip) error {
	const q = `INSERT INTO verified_slips (fingerprint, booking_id, amount) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, s.Fingerprint, s.BookingID, s.Amount)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateSlip
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// AttachExternal enriches the slip identified by fingerprint with the
// verifier's transaction reference and raw response payload.  The
// unique index on external_ref turns a reused transaction reference
// into ErrDuplicateSlip, catching slips that hash differently but
// point at the same underlying payment.
func (r *SlipRepo) AttachExternal(ctx context.Context, fingerprint, externalRef, rawPayload string) error {
	const q = `UPDATE verified_slips SET external_ref = ?, raw_payload = ? WHERE fingerprint = ?`
	var ref any
	if externalRef != "" {
		ref = externalRef
	}
	_, err := r.db.ExecContext(ctx, q, ref, rawPayload, fingerprint)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateSlip
	}
	return err
}

// GetByFingerprint returns a single ledger entry.  ErrNotFound is
// returned when the fingerprint has never been recorded.
func (r *SlipRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*model.VerifiedSlip, error) {
	const q = `SELECT id, fingerprint, booking_id, amount, external_ref, raw_payload, created_at
               FROM verified_slips WHERE fingerprint = ?`
	var s model.VerifiedSlip
	var extRef, raw sql.NullString
	err := r.db.QueryRowContext(ctx, q, fingerprint).Scan(
		&s.ID, &s.Fingerprint, &s.BookingID, &s.Amount, &extRef, &raw, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if extRef.Valid {
		v := extRef.String
		s.ExternalRef = &v
	}
	if raw.Valid {
		v := raw.String
		s.RawPayload = &v
	}
	return &s, nil
}
