package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads posted journal data for projections.
type Repository interface {
	SumPostedByAccount(ctx context.Context, asOf time.Time) ([]AccountBalance, error)
	AccountOpening(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, error)
	AccountMovements(ctx context.Context, accountID int64, from, to time.Time) ([]Movement, error)
	ContactOpening(ctx context.Context, contactID int64, before time.Time) (decimal.Decimal, error)
	ContactMovements(ctx context.Context, contactID int64, from, to time.Time) ([]Movement, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// SumPostedByAccount aggregates posted lines per account up to asOf.
// Only accounts with posted movement appear.
func (r *repository) SumPostedByAccount(ctx context.Context, asOf time.Time) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
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
	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *repository) AccountOpening(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, error) {
	var opening decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.status='POSTED' AND l.account_id=$1 AND e.date < $2`, accountID, before).Scan(&opening)
	return opening, err
}

func (r *repository) AccountMovements(ctx context.Context, accountID int64, from, to time.Time) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date, l.description, l.debit, l.credit
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.status='POSTED' AND l.account_id=$1 AND e.date >= $2 AND e.date <= $3
ORDER BY e.date ASC, e.number ASC, l.id ASC`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

func (r *repository) ContactOpening(ctx context.Context, contactID int64, before time.Time) (decimal.Decimal, error) {
	var opening decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.status='POSTED' AND l.contact_id=$1 AND e.date < $2`, contactID, before).Scan(&opening)
	return opening, err
}

func (r *repository) ContactMovements(ctx context.Context, contactID int64, from, to time.Time) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date, l.description, l.debit, l.credit
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.status='POSTED' AND l.contact_id=$1 AND e.date >= $2 AND e.date <= $3
ORDER BY e.date ASC, e.number ASC, l.id ASC`, contactID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.EntryID, &m.EntryNumber, &m.Date, &m.Description, &m.Debit, &m.Credit); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
