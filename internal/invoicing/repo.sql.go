package invoicing

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/platform/db"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	GetContact(ctx context.Context, id int64) (Contact, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	InsertContact(ctx context.Context, c Contact) (Contact, error)
}

// TxRepository combines invoice persistence with the journal engine's
// transactional operations so posting an invoice and its journal entry
// commit or roll back together.
type TxRepository interface {
	ledger.TxRepository
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	GetInvoiceLines(ctx context.Context, id int64) ([]InvoiceLine, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error
	GetContact(ctx context.Context, id int64) (Contact, error)
	MarkInvoicePosted(ctx context.Context, id, journalEntryID int64) (bool, error)
	MarkInvoiceCancelled(ctx context.Context, id int64, from InvoiceStatus) (bool, error)
}

// Repository persists invoices in PostgreSQL.
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

// WithTx executes fn within a RepeatableRead transaction that spans
// both invoice and journal writes.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

const invoiceColumns = `id, number, contact_id, date, type, status, subtotal, tax_amount, withhold_amount, total_amount, journal_entry_id, source_id, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.ContactID, &inv.Date, &inv.Type, &inv.Status,
		&inv.Subtotal, &inv.TaxAmount, &inv.WithholdAmount, &inv.TotalAmount,
		&inv.JournalEntryID, &inv.SourceID, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, withhold_rate, withhold_amount, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	inv.Lines, err = collectInvoiceLines(rows)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND type=$` + strconv.Itoa(len(args))
	}
	if filter.ContactID != 0 {
		args = append(args, filter.ContactID)
		query += ` AND contact_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY date DESC, number DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *Repository) GetContact(ctx context.Context, id int64) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT id, name, kind, tax_number, created_at FROM contacts WHERE id=$1`, id))
}

func (r *Repository) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, tax_number, created_at FROM contacts ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *Repository) InsertContact(ctx context.Context, c Contact) (Contact, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO contacts (name, kind, tax_number) VALUES ($1,$2,$3) RETURNING id, created_at`,
		c.Name, c.Kind, c.TaxNumber).Scan(&c.ID, &c.CreatedAt)
	return c, err
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	var taxNumber *string
	err := row.Scan(&c.ID, &c.Name, &c.Kind, &taxNumber, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrContactNotFound
		}
		return Contact{}, err
	}
	if taxNumber != nil {
		c.TaxNumber = *taxNumber
	}
	return c, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetInvoiceLines(ctx context.Context, id int64) ([]InvoiceLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, withhold_rate, withhold_amount, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoiceLines(rows)
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, contact_id, date, type, status, subtotal, tax_amount, withhold_amount, total_amount, source_id, created_by)
VALUES ($1,$2,$3,$4,'DRAFT',$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		inv.Number, inv.ContactID, inv.Date, inv.Type, inv.Subtotal, inv.TaxAmount, inv.WithholdAmount, inv.TotalAmount, inv.SourceID, inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_invoices_number" {
			return Invoice{}, ErrDuplicateNumber
		}
		return Invoice{}, err
	}
	inv.Status = StatusDraft
	return inv, nil
}

func (r *txRepository) InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, tax_rate, tax_amount, withhold_rate, withhold_amount, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			invoiceID, line.Description, line.Quantity, line.UnitPrice, line.TaxRate, line.TaxAmount, line.WithholdRate, line.WithholdAmount, line.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetContact(ctx context.Context, id int64) (Contact, error) {
	return scanContact(r.tx.QueryRow(ctx, `SELECT id, name, kind, tax_number, created_at FROM contacts WHERE id=$1`, id))
}

// MarkInvoicePosted performs the DRAFT -> POSTED compare-and-swap and
// records the generated journal entry.
func (r *txRepository) MarkInvoicePosted(ctx context.Context, id, journalEntryID int64) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET status='POSTED', journal_entry_id=$2, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, id, journalEntryID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkInvoiceCancelled performs the from -> CANCELLED compare-and-swap.
func (r *txRepository) MarkInvoiceCancelled(ctx context.Context, id int64, from InvoiceStatus) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET status='CANCELLED', updated_at=NOW()
WHERE id=$1 AND status=$2`, id, from)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func collectInvoiceLines(rows pgx.Rows) ([]InvoiceLine, error) {
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.TaxRate, &line.TaxAmount, &line.WithholdRate, &line.WithholdAmount, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
