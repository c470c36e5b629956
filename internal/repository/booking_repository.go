package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/stayhub/booking-core/internal/model"
)

// BookingRepo provides data access to the bookings table.  Bookings
// are never deleted; every state change is a conditional UPDATE keyed
// on the current status so that two concurrent transitions for the
// same booking can never both apply.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for transaction-spanning callers.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, tenant_id, room_id, guest_id, reference_code, check_in, check_out,
       guests, total_amount, status, payment_proof_url, notes, cancel_reason, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var proofURL, notes, cancelReason sql.NullString
	err := row.Scan(
		&b.ID, &b.TenantID, &b.RoomID, &b.GuestID, &b.ReferenceCode,
		&b.Dates.CheckIn, &b.Dates.CheckOut,
		&b.Guests, &b.TotalAmount, &b.Status,
		&proofURL, &notes, &cancelReason,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if proofURL.Valid {
		v := proofURL.String
		b.ProofURL = &v
	}
	if notes.Valid {
		v := notes.String
		b.Notes = &v
	}
	if cancelReason.Valid {
		v := cancelReason.String
		b.CancelReason = &v
	}
	return &b, nil
}

// Create inserts a new booking row and populates the generated ID and
// timestamps on the provided struct.  The booking must arrive with
// status already set (normally pending).
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (tenant_id, room_id, guest_id, reference_code, check_in, check_out,
               guests, total_amount, status, notes)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var notes any
	if b.Notes != nil {
		notes = *b.Notes
	}
	result, err := r.db.ExecContext(ctx, q,
		b.TenantID, b.RoomID, b.GuestID, b.ReferenceCode,
		b.Dates.CheckIn.Format(model.DateLayout), b.Dates.CheckOut.Format(model.DateLayout),
		b.Guests, b.TotalAmount, string(b.Status), notes,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	created, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

// GetByID returns a single booking.  ErrNotFound is returned when the
// booking does not exist.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// CountOverlapping returns how many bookings in the given statuses
// overlap the candidate date range for a room.  Overlap follows the
// half-open rule: a.check_in < b.check_out AND a.check_out > b.check_in.
// The (room_id, check_in, check_out) index backs this query.
func (r *BookingRepo) CountOverlapping(ctx context.Context, roomID uint64, dr model.DateRange, statuses []model.BookingStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT COUNT(*) FROM bookings
          WHERE room_id = ? AND check_in < ? AND check_out > ? AND status IN (` + placeholders + `)`
	args := []any{roomID, dr.CheckOut.Format(model.DateLayout), dr.CheckIn.Format(model.DateLayout)}
	for _, s := range statuses {
		args = append(args, string(s))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateStatus performs the compare-and-swap transition that serializes
// a booking's lifecycle: the row is only updated when its current
// status is one of `from`.  It returns true when the transition was
// applied and false when the row was in some other state (or absent).
// An optional reason is recorded alongside cancellations.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from []model.BookingStatus, to model.BookingStatus, reason *string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	q := `UPDATE bookings SET status = ?, cancel_reason = COALESCE(?, cancel_reason), updated_at = UTC_TIMESTAMP()
          WHERE id = ? AND status IN (` + placeholders + `)`
	var reasonArg any
	if reason != nil {
		reasonArg = *reason
	}
	args := []any{string(to), reasonArg, id}
	for _, s := range from {
		args = append(args, string(s))
	}
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetProofURL records the payment proof reference on a booking.  The
// proof itself lives in object storage; the booking only carries the
// URL for display and audit.
func (r *BookingRepo) SetProofURL(ctx context.Context, id uint64, proofURL string) error {
	const q = `UPDATE bookings SET payment_proof_url = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, proofURL, id)
	return err
}

// ListByGuest returns all bookings created by a guest, newest first.
func (r *BookingRepo) ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE guest_id = ? ORDER BY created_at DESC`, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteElapsed flips confirmed bookings whose check-out date has
// passed to completed.  It is meant to run from a periodic batch, not
// from the request path, and returns how many rows were transitioned.
func (r *BookingRepo) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP()
               WHERE status = ? AND check_out <= ?`
	result, err := r.db.ExecContext(ctx, q,
		string(model.BookingCompleted), string(model.BookingConfirmed), now.Format(model.DateLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
