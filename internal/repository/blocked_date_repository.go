package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stayhub/booking-core/internal/model"
)

// BlockedDateRepo provides data access to the blocked_dates table.
// Hosts block individual calendar dates on a room independently of
// bookings; the availability oracle treats any blocked date inside a
// candidate range as making the whole range unavailable.
type BlockedDateRepo struct {
	db *sql.DB
}

// NewBlockedDateRepo returns a new BlockedDateRepo bound to the provided database.
func NewBlockedDateRepo(db *sql.DB) *BlockedDateRepo { return &BlockedDateRepo{db: db} }

// CountInRange returns how many blocked dates fall inside the given
// half-open range for a room.  The availability oracle only needs the
// count, not the dates themselves.
func (r *BlockedDateRepo) CountInRange(ctx context.Context, roomID uint64, dr model.DateRange) (int, error) {
	const q = `SELECT COUNT(*) FROM blocked_dates WHERE room_id = ? AND day >= ? AND day < ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, roomID,
		dr.CheckIn.Format(model.DateLayout), dr.CheckOut.Format(model.DateLayout)).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Add marks a single date unavailable for a room.  Inserting the same
// date twice is a no-op thanks to the unique (room_id, day) key.
func (r *BlockedDateRepo) Add(ctx context.Context, roomID uint64, day time.Time) error {
	const q = `INSERT IGNORE INTO blocked_dates (room_id, day) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, q, roomID, day.Format(model.DateLayout))
	return err
}

// Remove unblocks a single date.  Removing an absent date is a no-op.
func (r *BlockedDateRepo) Remove(ctx context.Context, roomID uint64, day time.Time) error {
	const q = `DELETE FROM blocked_dates WHERE room_id = ? AND day = ?`
	_, err := r.db.ExecContext(ctx, q, roomID, day.Format(model.DateLayout))
	return err
}

// ListByRoom returns all blocked dates for a room ordered by day.
func (r *BlockedDateRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.BlockedDate, error) {
	const q = `SELECT id, room_id, day FROM blocked_dates WHERE room_id = ? ORDER BY day`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BlockedDate, 0)
	for rows.Next() {
		var bd model.BlockedDate
		if err := rows.Scan(&bd.ID, &bd.RoomID, &bd.Day); err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
