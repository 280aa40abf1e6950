package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context) ([]PeriodLock, error)
	IsLocked(ctx context.Context, date time.Time) (bool, error)
	Lock(ctx context.Context, year, month int, actorID int64, at time.Time) (PeriodLock, error)
	Unlock(ctx context.Context, year, month int, actorID int64, at time.Time) (PeriodLock, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, year, month, is_locked, locked_at, locked_by, unlocked_at, unlocked_by, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]PeriodLock, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM period_locks ORDER BY year, month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locks []PeriodLock
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}

// IsLocked is the pure lookup consulted before ledger mutations.
func (r *repository) IsLocked(ctx context.Context, date time.Time) (bool, error) {
	var locked bool
	err := r.db.QueryRow(ctx, `SELECT is_locked FROM period_locks WHERE year=$1 AND month=$2`,
		date.Year(), int(date.Month())).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return locked, nil
}

// Lock flips the period to locked. It runs in its own transaction so the
// already-locked check, the draft sweep, and the flip are atomic against
// concurrent lock attempts and posts.
func (r *repository) Lock(ctx context.Context, year, month int, actorID int64, at time.Time) (PeriodLock, error) {
	var lock PeriodLock
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var existing bool
		err := tx.QueryRow(ctx, `SELECT is_locked FROM period_locks WHERE year=$1 AND month=$2 FOR UPDATE`, year, month).Scan(&existing)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil && existing {
			return ErrAlreadyLocked
		}
		var drafts int64
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE status='DRAFT'
AND EXTRACT(YEAR FROM date)=$1 AND EXTRACT(MONTH FROM date)=$2`, year, month).Scan(&drafts)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return ErrUnpostedEntries
		}
		row := tx.QueryRow(ctx, `INSERT INTO period_locks (year, month, is_locked, locked_at, locked_by)
VALUES ($1,$2,TRUE,$3,$4)
ON CONFLICT (year, month) DO UPDATE SET is_locked=TRUE, locked_at=$3, locked_by=$4, updated_at=NOW()
RETURNING `+columns, year, month, at, actorID)
		var scanErr error
		lock, scanErr = scanLock(row)
		return scanErr
	})
	if err != nil {
		return PeriodLock{}, err
	}
	return lock, nil
}

// Unlock is always permitted as an administrative override; it records
// who unlocked and when for audit.
func (r *repository) Unlock(ctx context.Context, year, month int, actorID int64, at time.Time) (PeriodLock, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO period_locks (year, month, is_locked, unlocked_at, unlocked_by)
VALUES ($1,$2,FALSE,$3,$4)
ON CONFLICT (year, month) DO UPDATE SET is_locked=FALSE, unlocked_at=$3, unlocked_by=$4, updated_at=NOW()
RETURNING `+columns, year, month, at, actorID)
	return scanLock(row)
}

func scanLock(row pgx.Row) (PeriodLock, error) {
	var p PeriodLock
	err := row.Scan(&p.ID, &p.Year, &p.Month, &p.IsLocked, &p.LockedAt, &p.LockedBy, &p.UnlockedAt, &p.UnlockedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PeriodLock{}, err
	}
	return p, nil
}
