package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhub/booking-core/internal/model"
)

func testRange(t *testing.T, in, out string) model.DateRange {
	t.Helper()
	dr, err := model.ParseDateRange(in, out)
	require.NoError(t, err)
	return dr
}

var lockColumns = []string{"id", "guest_id", "check_in", "check_out", "expires_at", "created_at"}

func TestLockRepoAcquire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nowSQL := "2025-06-01 12:00:00"
	dr := testRange(t, "2025-06-10", "2025-06-13")

	t.Run("GrantsWhenRoomClear", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewLockRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservation_locks WHERE room_id`).
			WithArgs(uint64(1), nowSQL).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, guest_id, check_in, check_out, expires_at, created_at`).
			WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows(lockColumns))
		mock.ExpectExec(`INSERT INTO reservation_locks`).
			WithArgs(sqlmock.AnyArg(), uint64(1), uint64(100), "2025-06-10", "2025-06-13", "2025-06-01 12:15:00").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		lock, err := repo.Acquire(ctx, 1, 100, dr, now, 15*time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, lock.ID)
		assert.Equal(t, uint64(100), lock.GuestID)
		assert.True(t, lock.ExpiresAt.Equal(now.Add(15*time.Minute)))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeniedOnOverlapByOtherGuest", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewLockRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservation_locks WHERE room_id`).
			WithArgs(uint64(1), nowSQL).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, guest_id, check_in, check_out, expires_at, created_at`).
			WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(
				"existing-lock", uint64(200),
				time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
				now.Add(10*time.Minute), now))
		mock.ExpectRollback()

		_, err = repo.Acquire(ctx, 1, 100, dr, now, 15*time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RefreshesOwnLock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewLockRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservation_locks WHERE room_id`).
			WithArgs(uint64(1), nowSQL).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, guest_id, check_in, check_out, expires_at, created_at`).
			WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow(
				"own-lock", uint64(100),
				time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC),
				now.Add(5*time.Minute), now.Add(-10*time.Minute)))
		mock.ExpectExec(`UPDATE reservation_locks SET expires_at`).
			WithArgs("2025-06-01 12:15:00", "own-lock").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		lock, err := repo.Acquire(ctx, 1, 100, dr, now, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "own-lock", lock.ID)
		assert.True(t, lock.ExpiresAt.Equal(now.Add(15*time.Minute)))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateKeyOnInsertReportsHeld", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewLockRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservation_locks WHERE room_id`).
			WithArgs(uint64(1), nowSQL).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, guest_id, check_in, check_out, expires_at, created_at`).
			WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows(lockColumns))
		mock.ExpectExec(`INSERT INTO reservation_locks`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
		mock.ExpectRollback()

		_, err = repo.Acquire(ctx, 1, 100, dr, now, 15*time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLockRepoRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLockRepo(db)
	dr := testRange(t, "2025-06-10", "2025-06-13")

	mock.ExpectExec(`DELETE FROM reservation_locks`).
		WithArgs(uint64(1), uint64(100), "2025-06-10", "2025-06-13").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Release(context.Background(), 1, 100, dr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRepoHasLive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewLockRepo(db)
	dr := testRange(t, "2025-06-10", "2025-06-13")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reservation_locks`).
		WithArgs(uint64(1), uint64(100), "2025-06-10", "2025-06-13", "2025-06-01 12:00:00").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	live, err := repo.HasLive(context.Background(), 1, 100, dr, now)
	require.NoError(t, err)
	assert.True(t, live)
	assert.NoError(t, mock.ExpectationsWereMet())
}
