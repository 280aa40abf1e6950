package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/defterdar/defterdar/internal/platform/db"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, entryID int64) (JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
}

// TxRepository exposes the transactional operations the posting state
// machine runs on. Implementations wrap a single database transaction.
type TxRepository interface {
	AccountFlags(ctx context.Context, ids []int64) (map[int64]bool, error)
	InsertEntry(ctx context.Context, in DraftInput, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error
	UpdateDraftHeader(ctx context.Context, entryID int64, in DraftInput, totalDebit, totalCredit decimal.Decimal) error
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	MarkPosted(ctx context.Context, entryID int64, at time.Time) (bool, error)
	MarkReversed(ctx context.Context, entryID int64) (bool, error)
	DeleteEntry(ctx context.Context, entryID int64) error
	IsPeriodLocked(ctx context.Context, p Period) (bool, error)
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
}

// Repository persists journal entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing transaction so other modules can
// compose journal posting with their own writes atomically.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, number, description, date, status, total_debit, total_credit, reversal_of_id, source_module, source_id, created_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var sourceModule *string
	var sourceID *uuid.UUID
	err := row.Scan(&e.ID, &e.Number, &e.Description, &e.Date, &e.Status, &e.TotalDebit, &e.TotalCredit,
		&e.ReversalOfID, &sourceModule, &sourceID, &e.CreatedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if sourceModule != nil {
		e.SourceModule = *sourceModule
	}
	if sourceID != nil {
		e.SourceID = *sourceID
	}
	return e, nil
}

// GetEntry loads an entry with its lines outside a transaction.
func (r *Repository) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, je_id, account_id, contact_id, debit, credit, description, created_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	entry.Lines, err = collectLines(rows)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ListEntries returns entries matching the filter ordered by date then number.
func (r *Repository) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status=$` + itoa(len(args))
	}
	if filter.Period != nil {
		args = append(args, filter.Period.Year)
		query += ` AND EXTRACT(YEAR FROM date)=$` + itoa(len(args))
		args = append(args, int(filter.Period.Month))
		query += ` AND EXTRACT(MONTH FROM date)=$` + itoa(len(args))
	}
	query += ` ORDER BY date DESC, number DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func (r *txRepository) AccountFlags(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, is_active FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	flags := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var active bool
		if err := rows.Scan(&id, &active); err != nil {
			return nil, err
		}
		flags[id] = active
	}
	return flags, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, in DraftInput, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, description, date, status, total_debit, total_credit, reversal_of_id, source_module, source_id, created_by)
VALUES ($1,$2,$3,'DRAFT',$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		in.Number, in.Description, in.Date, totalDebit, totalCredit, in.ReversalOfID, nullStr(in.SourceModule), nullUUID(in.SourceID), in.CreatedBy)
	entry := JournalEntry{
		Number:       in.Number,
		Description:  in.Description,
		Date:         in.Date,
		Status:       StatusDraft,
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		ReversalOfID: in.ReversalOfID,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		CreatedBy:    in.CreatedBy,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if pgErr := pgError(err); pgErr != nil && pgErr.ConstraintName == "uq_journal_entries_number" {
			return JournalEntry{}, ErrDuplicateNumber
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, contact_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.AccountID, line.ContactID, line.Debit, line.Credit, line.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID); err != nil {
		return err
	}
	return r.InsertLines(ctx, entryID, lines)
}

func (r *txRepository) UpdateDraftHeader(ctx context.Context, entryID int64, in DraftInput, totalDebit, totalCredit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET number=$2, description=$3, date=$4, total_debit=$5, total_credit=$6, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, entryID, in.Number, in.Description, in.Date, totalDebit, totalCredit)
	if err != nil {
		if pgErr := pgError(err); pgErr != nil && pgErr.ConstraintName == "uq_journal_entries_number" {
			return ErrDuplicateNumber
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, je_id, account_id, contact_id, debit, credit, description, created_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

// MarkPosted performs the DRAFT -> POSTED compare-and-swap. A false
// return means another transaction won the race or the entry left DRAFT.
func (r *txRepository) MarkPosted(ctx context.Context, entryID int64, at time.Time) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_at=$2, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, entryID, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkReversed performs the POSTED -> REVERSED compare-and-swap.
func (r *txRepository) MarkReversed(ctx context.Context, entryID int64) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', updated_at=NOW()
WHERE id=$1 AND status='POSTED'`, entryID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1 AND status='DRAFT'`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// IsPeriodLocked reports whether the (year, month) period is locked. The
// lock row, when present, is row-locked so a concurrent lock() cannot
// slip in between the check and the posting commit.
func (r *txRepository) IsPeriodLocked(ctx context.Context, p Period) (bool, error) {
	var locked bool
	err := r.tx.QueryRow(ctx, `SELECT is_locked FROM period_locks WHERE year=$1 AND month=$2 FOR UPDATE`, p.Year, int(p.Month)).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return locked, nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		if pgErr := pgError(err); pgErr != nil && pgErr.ConstraintName == "uq_source_links" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func collectLines(rows pgx.Rows) ([]JournalLine, error) {
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.ContactID, &line.Debit, &line.Credit, &line.Description, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
