package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stayhub/booking-core/internal/model"
)

// RoomRepo provides read access to the rooms table.  Rooms are managed
// through the tenant dashboard, which is outside this service; here we
// only ever read them to price and validate booking attempts, so the
// repository exposes no mutation beyond blocked-date management (which
// lives in BlockedDateRepo).
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *RoomRepo) DB() *sql.DB { return r.db }

// GetByID returns a single room.  ErrNotFound is returned when no row
// with the given ID exists.
func (r *RoomRepo) GetByID(ctx context.Context, roomID uint64) (*model.Room, error) {
	const q = `SELECT id, tenant_id, name, capacity, nightly_price, min_stay_nights, is_active, created_at
               FROM rooms WHERE id = ?`
	var rm model.Room
	err := r.db.QueryRowContext(ctx, q, roomID).Scan(
		&rm.ID, &rm.TenantID, &rm.Name, &rm.Capacity, &rm.NightlyPrice, &rm.MinStay, &rm.Active, &rm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rm, nil
}
