package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stayhub/booking-core/internal/model"
)

// UploadTokenRepo provides data access to the upload_tokens table.
// Tokens expire passively like reservation locks; consumption is a
// conditional UPDATE so two devices racing on the same token cannot
// both win.
type UploadTokenRepo struct {
	db *sql.DB
}

// NewUploadTokenRepo returns a new UploadTokenRepo bound to the given database.
func NewUploadTokenRepo(db *sql.DB) *UploadTokenRepo { return &UploadTokenRepo{db: db} }

// InvalidatePrior expires all unconsumed tokens for the same
// guest+room+range so that at most one live token exists per booking
// attempt.  Called immediately before issuing a replacement.
func (r *UploadTokenRepo) InvalidatePrior(ctx context.Context, guestID, roomID uint64, dr model.DateRange, now time.Time) error {
	const q = `UPDATE upload_tokens SET expires_at = ?
               WHERE guest_id = ? AND room_id = ? AND check_in = ? AND check_out = ?
                 AND used = 0 AND expires_at > ?`
	ts := now.UTC().Format("2006-01-02 15:04:05")
	_, err := r.db.ExecContext(ctx, q, ts, guestID, roomID,
		dr.CheckIn.Format(model.DateLayout), dr.CheckOut.Format(model.DateLayout), ts)
	return err
}

// Insert stores a freshly issued token and populates its generated ID.
func (r *UploadTokenRepo) Insert(ctx context.Context, t *model.UploadToken) error {
	const q = `INSERT INTO upload_tokens (token, guest_id, room_id, check_in, check_out, guests, total_amount, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		t.Token, t.GuestID, t.RoomID,
		t.Dates.CheckIn.Format(model.DateLayout), t.Dates.CheckOut.Format(model.DateLayout),
		t.Guests, t.TotalAmount, t.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByToken returns the token record regardless of expiry; callers
// apply the lazy-expiry rule with their own clock reading.  ErrNotFound
// is returned for unknown tokens.
func (r *UploadTokenRepo) GetByToken(ctx context.Context, token string) (*model.UploadToken, error) {
	const q = `SELECT id, token, guest_id, room_id, check_in, check_out, guests, total_amount,
                      used, proof_url, expires_at, created_at
               FROM upload_tokens WHERE token = ?`
	var t model.UploadToken
	var proofURL sql.NullString
	err := r.db.QueryRowContext(ctx, q, token).Scan(
		&t.ID, &t.Token, &t.GuestID, &t.RoomID,
		&t.Dates.CheckIn, &t.Dates.CheckOut,
		&t.Guests, &t.TotalAmount, &t.Used, &proofURL, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if proofURL.Valid {
		v := proofURL.String
		t.ProofURL = &v
	}
	return &t, nil
}

// MarkUsed consumes the token, recording where the uploaded proof was
// stored.  The conditional WHERE clause makes consumption single-use:
// it returns false when the token was already used or has expired in
// the meantime.
func (r *UploadTokenRepo) MarkUsed(ctx context.Context, token, proofURL string, now time.Time) (bool, error) {
	const q = `UPDATE upload_tokens SET used = 1, proof_url = ?
               WHERE token = ? AND used = 0 AND expires_at > ?`
	result, err := r.db.ExecContext(ctx, q, proofURL, token, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
