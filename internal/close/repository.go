package close

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/reports"
	"github.com/defterdar/defterdar/internal/platform/db"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository combines the journal engine's transactional operations
// with the aggregate reads and period lock writes the close needs, all
// on one transaction.
type TxRepository interface {
	ledger.TxRepository
	AccountBalances(ctx context.Context, asOf time.Time) ([]reports.AccountBalance, error)
	CountDraftsInYear(ctx context.Context, year int) (int, error)
	LockPeriod(ctx context.Context, year, month int, actorID int64, at time.Time) error
}

// Repository persists year close effects in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

// WithTx executes fn within a RepeatableRead transaction spanning the
// closing entry, opening entry, and all period locks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

// AccountBalances aggregates posted sums per account up to asOf,
// including entries posted earlier in the same transaction.
func (r *txRepository) AccountBalances(ctx context.Context, asOf time.Time) ([]reports.AccountBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM accounts a
JOIN journal_lines l ON l.account_id = a.id
JOIN journal_entries e ON e.id = l.je_id
WHERE e.status='POSTED' AND e.date <= $1
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []reports.AccountBalance
	for rows.Next() {
		var b reports.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *txRepository) CountDraftsInYear(ctx context.Context, year int) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries
WHERE status='DRAFT' AND EXTRACT(YEAR FROM date)=$1`, year).Scan(&count)
	return count, err
}

// LockPeriod upserts the lock row for (year, month). Re-locking an
// already locked month is a no-op here; the draft check ran before any
// lock was taken.
func (r *txRepository) LockPeriod(ctx context.Context, year, month int, actorID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO period_locks (year, month, is_locked, locked_at, locked_by)
VALUES ($1,$2,TRUE,$3,$4)
ON CONFLICT (year, month) DO UPDATE SET is_locked=TRUE, locked_at=$3, locked_by=$4, updated_at=NOW()`,
		year, month, at, actorID)
	return err
}
