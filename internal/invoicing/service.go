package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/shared"
)

// AuditPort records invoice events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProjectionCache invalidates balance projections after invoice posting
// changes the ledger.
type ProjectionCache interface {
	Invalidate(ctx context.Context) error
}

// Service orchestrates the invoice lifecycle and its journal effects.
type Service struct {
	repo     RepositoryPort
	resolver mappings.Resolver
	audit    AuditPort
	cache    ProjectionCache
	now      func() time.Time
}

func NewService(repo RepositoryPort, resolver mappings.Resolver, audit AuditPort, cache ProjectionCache) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates the input, computes all derived amounts, and
// persists a draft invoice.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if strings.TrimSpace(input.Number) == "" {
		return Invoice{}, fmt.Errorf("%w: number required", ErrValidation)
	}
	if input.Date.IsZero() {
		return Invoice{}, fmt.Errorf("%w: date required", ErrValidation)
	}
	if !input.Type.Valid() {
		return Invoice{}, fmt.Errorf("%w: unknown type %q", ErrValidation, input.Type)
	}
	if _, err := s.repo.GetContact(ctx, input.ContactID); err != nil {
		return Invoice{}, err
	}
	lines, totals, err := ComputeTotals(input.Lines)
	if err != nil {
		return Invoice{}, err
	}
	invoice := Invoice{
		Number:         input.Number,
		ContactID:      input.ContactID,
		Date:           input.Date,
		Type:           input.Type,
		Status:         StatusDraft,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.Tax,
		WithholdAmount: totals.Withhold,
		TotalAmount:    totals.Total,
		SourceID:       uuid.New(),
		CreatedBy:      input.CreatedBy,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		return tx.InsertInvoiceLines(ctx, invoice.ID, lines)
	})
	if err != nil {
		return Invoice{}, err
	}
	invoice.Lines = lines
	return invoice, nil
}

// Post translates the invoice into a journal entry, posts it, and marks
// the invoice POSTED. All effects share one transaction; on any failure
// the invoice keeps its prior status and no journal entry remains.
func (s *Service) Post(ctx context.Context, invoiceID, actorID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != StatusDraft {
			return ErrInvalidStatus
		}
		contact, err := tx.GetContact(ctx, invoice.ContactID)
		if err != nil {
			return err
		}
		// The translator buckets by tax rate, so it needs the lines.
		invoice.Lines, err = tx.GetInvoiceLines(ctx, invoice.ID)
		if err != nil {
			return err
		}
		accounts, err := s.resolveAccounts(ctx, invoice.Type, contact.Kind)
		if err != nil {
			return err
		}
		draft, err := Translate(invoice, contact.Kind, accounts)
		if err != nil {
			return err
		}
		entry, err := ledger.CreatePostedTx(ctx, tx, draft, s.now())
		if err != nil {
			return err
		}
		ok, err := tx.MarkInvoicePosted(ctx, invoice.ID, entry.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatus
		}
		invoice.Status = StatusPosted
		invoice.JournalEntryID = &entry.ID
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "invoice.post", invoice.ID, map[string]any{
		"number":           invoice.Number,
		"journal_entry_id": invoice.JournalEntryID,
	})
	return invoice, nil
}

// Cancel marks the invoice CANCELLED. A posted invoice first gets its
// journal entry reversed; the reversal and the status change commit
// together.
func (s *Service) Cancel(ctx context.Context, invoiceID, actorID int64) (Invoice, error) {
	var invoice Invoice
	var reversed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		switch invoice.Status {
		case StatusDraft:
			ok, err := tx.MarkInvoiceCancelled(ctx, invoice.ID, StatusDraft)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidStatus
			}
		case StatusPosted:
			if invoice.JournalEntryID == nil {
				return fmt.Errorf("invoicing: posted invoice %d has no journal entry", invoice.ID)
			}
			_, err := ledger.ReverseEntryTx(ctx, tx, ledger.ReverseInput{
				EntryID:     *invoice.JournalEntryID,
				ActorID:     actorID,
				Description: fmt.Sprintf("Cancellation of invoice %s", invoice.Number),
			}, s.now())
			if err != nil {
				return err
			}
			ok, err := tx.MarkInvoiceCancelled(ctx, invoice.ID, StatusPosted)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidStatus
			}
			reversed = true
		default:
			return ErrInvalidStatus
		}
		invoice.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	if reversed {
		s.invalidate(ctx)
	}
	s.record(ctx, actorID, "invoice.cancel", invoice.ID, map[string]any{"number": invoice.Number})
	return invoice, nil
}

// Get loads an invoice with lines.
func (s *Service) Get(ctx context.Context, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, invoiceID)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// CreateContact registers a customer or supplier.
func (s *Service) CreateContact(ctx context.Context, name string, kind ContactKind, taxNumber string) (Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Contact{}, fmt.Errorf("%w: contact name required", ErrValidation)
	}
	if kind != KindCustomer && kind != KindSupplier {
		return Contact{}, fmt.Errorf("%w: unknown contact kind %q", ErrValidation, kind)
	}
	return s.repo.InsertContact(ctx, Contact{Name: name, Kind: kind, TaxNumber: taxNumber})
}

// ListContacts returns all contacts.
func (s *Service) ListContacts(ctx context.Context) ([]Contact, error) {
	return s.repo.ListContacts(ctx)
}

// resolveAccounts looks up the mapped accounts the invoice direction
// needs. RETURN resolves the mapping its contact kind mirrors.
func (s *Service) resolveAccounts(ctx context.Context, typ InvoiceType, kind ContactKind) (PostingAccounts, error) {
	direction := typ
	if typ == TypeReturn {
		if kind == KindSupplier {
			direction = TypePurchase
		} else {
			direction = TypeSale
		}
	}
	var accounts PostingAccounts
	var err error
	switch direction {
	case TypeSale:
		if accounts.Receivable, err = s.resolve(ctx, mappings.KeyReceivable); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.SalesRevenue, err = s.resolve(ctx, mappings.KeySalesRevenue); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.VATPayable, err = s.resolve(ctx, mappings.KeyVATPayable); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.WithholdingAsset, err = s.resolve(ctx, mappings.KeyWithholdingAsset); err != nil {
			return PostingAccounts{}, err
		}
	case TypePurchase:
		if accounts.Payable, err = s.resolve(ctx, mappings.KeyPayable); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.PurchaseExpense, err = s.resolve(ctx, mappings.KeyPurchaseExpense); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.VATDeductible, err = s.resolve(ctx, mappings.KeyVATDeductible); err != nil {
			return PostingAccounts{}, err
		}
		if accounts.WithholdingOwed, err = s.resolve(ctx, mappings.KeyWithholdingOwed); err != nil {
			return PostingAccounts{}, err
		}
	}
	return accounts, nil
}

func (s *Service) resolve(ctx context.Context, key string) (int64, error) {
	mapping, err := s.resolver.Resolve(ctx, mappings.ModuleInvoicing, key)
	if err != nil {
		return 0, err
	}
	return mapping.AccountID, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
		At:       s.now(),
	})
}
