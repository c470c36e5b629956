package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/stayhub/booking-core/internal/model"
)

// LockRepo provides data access to the reservation_locks table.  The
// overlap rule (one live lock per overlapping range per room) cannot be
// expressed as a plain unique index, so Acquire serializes writers per
// room by reading the room's live rows FOR UPDATE inside a single
// transaction and enforcing the rule in application code.  A unique
// (room_id, check_in, check_out) key backstops the exact-duplicate
// case, and a violation of it is reported as the same business
// conflict as a logical overlap.
//
// Expiry is lazy: rows past expires_at are deleted on the next
// contested acquire and otherwise treated as absent.  No background
// sweeper is required for correctness.
type LockRepo struct {
	db *sql.DB
}

// NewLockRepo returns a new LockRepo bound to the given database.
func NewLockRepo(db *sql.DB) *LockRepo { return &LockRepo{db: db} }

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (code 1062), i.e. a unique-constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// Acquire grants, refreshes or denies a hold on (roomID, dr) for the
// given guest, atomically.  The decision runs in one transaction:
//
//  1. expired rows for the room are deleted (lazy expiry),
//  2. a live lock by the same guest on the identical range has its
//     expiry refreshed and is returned (idempotent re-acquire, which
//     keeps page reloads and client retries harmless),
//  3. a live lock by a different guest on an overlapping range denies
//     the request with ErrLockHeld,
//  4. otherwise a new lock expiring at now+ttl is inserted.
//
// now must be the caller's clock reading in UTC so tests can inject
// fixed clocks.
func (r *LockRepo) Acquire(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time, ttl time.Duration) (*model.ReservationLock, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Reclaim expired rows for this room before looking at anything.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_locks WHERE room_id = ? AND expires_at <= ?`,
		roomID, now.UTC().Format("2006-01-02 15:04:05")); err != nil {
		return nil, err
	}

	// Read the room's remaining live locks FOR UPDATE.  This is the
	// per-room serializing point: two concurrent acquires on the same
	// room queue up here regardless of which server process they hit.
	const q = `SELECT id, guest_id, check_in, check_out, expires_at, created_at
               FROM reservation_locks WHERE room_id = ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	var own *model.ReservationLock
	var held bool
	for rows.Next() {
		var l model.ReservationLock
		l.RoomID = roomID
		if scanErr := rows.Scan(&l.ID, &l.GuestID, &l.Dates.CheckIn, &l.Dates.CheckOut, &l.ExpiresAt, &l.CreatedAt); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if l.GuestID == guestID && l.Dates.Equal(dr) {
			own = &l
			continue
		}
		if l.Dates.Overlaps(dr) {
			held = true
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if held {
		return nil, ErrLockHeld
	}

	expiresAt := now.UTC().Add(ttl)
	if own != nil {
		// Idempotent re-acquire: refresh the expiry of the caller's own lock.
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservation_locks SET expires_at = ? WHERE id = ?`,
			expiresAt.Format("2006-01-02 15:04:05"), own.ID); err != nil {
			return nil, err
		}
		own.ExpiresAt = expiresAt
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return own, nil
	}

	lock := &model.ReservationLock{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		GuestID:   guestID,
		Dates:     dr,
		ExpiresAt: expiresAt,
		CreatedAt: now.UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservation_locks (id, room_id, guest_id, check_in, check_out, expires_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		lock.ID, roomID, guestID,
		dr.CheckIn.Format(model.DateLayout), dr.CheckOut.Format(model.DateLayout),
		expiresAt.Format("2006-01-02 15:04:05")); err != nil {
		if isDuplicateKey(err) {
			// Someone squeezed the identical range in first; same outcome
			// as a logical conflict.
			return nil, ErrLockHeld
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return lock, nil
}

// Release deletes the guest's lock on the exact date range.  Releasing
// an absent or expired lock is a no-op, which makes release safe to
// call from both the cancellation and the payment-confirmation path.
func (r *LockRepo) Release(ctx context.Context, roomID, guestID uint64, dr model.DateRange) error {
	const q = `DELETE FROM reservation_locks
               WHERE room_id = ? AND guest_id = ? AND check_in = ? AND check_out = ?`
	_, err := r.db.ExecContext(ctx, q, roomID, guestID,
		dr.CheckIn.Format(model.DateLayout), dr.CheckOut.Format(model.DateLayout))
	return err
}

// HasLive reports whether the guest currently holds a live lock on the
// exact date range.  The lifecycle service consults this before
// creating a booking when lock-gated checkout is enabled.
func (r *LockRepo) HasLive(ctx context.Context, roomID, guestID uint64, dr model.DateRange, now time.Time) (bool, error) {
	const q = `SELECT COUNT(*) FROM reservation_locks
               WHERE room_id = ? AND guest_id = ? AND check_in = ? AND check_out = ? AND expires_at > ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, roomID, guestID,
		dr.CheckIn.Format(model.DateLayout), dr.CheckOut.Format(model.DateLayout),
		now.UTC().Format("2006-01-02 15:04:05")).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
