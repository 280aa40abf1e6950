package invoicing

import (
	"context"
	"maps"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/shared"
)

// memoryStore backs both the invoice repository and the embedded
// journal operations. WithTx snapshots the maps and restores them on
// error so transactional all-or-nothing behaviour is observable.
type memoryStore struct {
	invoices     map[int64]Invoice
	invoiceLines map[int64][]InvoiceLine
	contacts     map[int64]Contact
	entries      map[int64]ledger.JournalEntry
	entryLines   map[int64][]ledger.JournalLine
	accounts     map[int64]bool
	locked       map[ledger.Period]bool
	links        map[string]int64
	nextID       int64
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		invoices:     make(map[int64]Invoice),
		invoiceLines: make(map[int64][]InvoiceLine),
		contacts: map[int64]Contact{
			1: {ID: 1, Name: "Acme Tekstil", Kind: KindCustomer},
			2: {ID: 2, Name: "Yıldız Tedarik", Kind: KindSupplier},
		},
		entries:    make(map[int64]ledger.JournalEntry),
		entryLines: make(map[int64][]ledger.JournalLine),
		accounts:   map[int64]bool{120: true, 191: true, 193: true, 320: true, 360: true, 391: true, 600: true, 770: true},
		locked:     make(map[ledger.Period]bool),
		links:      make(map[string]int64),
	}
}

func (s *memoryStore) snapshot() *memoryStore {
	return &memoryStore{
		invoices:     maps.Clone(s.invoices),
		invoiceLines: maps.Clone(s.invoiceLines),
		contacts:     maps.Clone(s.contacts),
		entries:      maps.Clone(s.entries),
		entryLines:   maps.Clone(s.entryLines),
		accounts:     maps.Clone(s.accounts),
		locked:       maps.Clone(s.locked),
		links:        maps.Clone(s.links),
		nextID:       s.nextID,
	}
}

func (s *memoryStore) restore(snap *memoryStore) {
	*s = *snap
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memoryStore) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	inv.Lines = append([]InvoiceLine(nil), s.invoiceLines[id]...)
	return inv, nil
}

func (s *memoryStore) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range s.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *memoryStore) GetContact(ctx context.Context, id int64) (Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	return c, nil
}

func (s *memoryStore) ListContacts(ctx context.Context) ([]Contact, error) {
	var out []Contact
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (s *memoryStore) InsertContact(ctx context.Context, c Contact) (Contact, error) {
	s.nextID++
	c.ID = s.nextID
	s.contacts[c.ID] = c
	return c, nil
}

func (t *memoryTx) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return t.store.GetInvoice(ctx, id)
}

func (t *memoryTx) GetInvoiceLines(ctx context.Context, id int64) ([]InvoiceLine, error) {
	return append([]InvoiceLine(nil), t.store.invoiceLines[id]...), nil
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	for _, existing := range t.store.invoices {
		if existing.Number == inv.Number {
			return Invoice{}, ErrDuplicateNumber
		}
	}
	t.store.nextID++
	inv.ID = t.store.nextID
	t.store.invoices[inv.ID] = inv
	return inv, nil
}

func (t *memoryTx) InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error {
	t.store.invoiceLines[invoiceID] = append([]InvoiceLine(nil), lines...)
	return nil
}

func (t *memoryTx) GetContact(ctx context.Context, id int64) (Contact, error) {
	return t.store.GetContact(ctx, id)
}

func (t *memoryTx) MarkInvoicePosted(ctx context.Context, id, journalEntryID int64) (bool, error) {
	inv, ok := t.store.invoices[id]
	if !ok || inv.Status != StatusDraft {
		return false, nil
	}
	inv.Status = StatusPosted
	inv.JournalEntryID = &journalEntryID
	t.store.invoices[id] = inv
	return true, nil
}

func (t *memoryTx) MarkInvoiceCancelled(ctx context.Context, id int64, from InvoiceStatus) (bool, error) {
	inv, ok := t.store.invoices[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = StatusCancelled
	t.store.invoices[id] = inv
	return true, nil
}

func (t *memoryTx) AccountFlags(ctx context.Context, ids []int64) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if active, ok := t.store.accounts[id]; ok {
			flags[id] = active
		}
	}
	return flags, nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, in ledger.DraftInput, totalDebit, totalCredit decimal.Decimal) (ledger.JournalEntry, error) {
	for _, entry := range t.store.entries {
		if entry.Number == in.Number {
			return ledger.JournalEntry{}, ledger.ErrDuplicateNumber
		}
	}
	t.store.nextID++
	entry := ledger.JournalEntry{
		ID:           t.store.nextID,
		Number:       in.Number,
		Description:  in.Description,
		Date:         in.Date,
		Status:       ledger.StatusDraft,
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		ReversalOfID: in.ReversalOfID,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		CreatedBy:    in.CreatedBy,
	}
	t.store.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []ledger.LineInput) error {
	for _, in := range lines {
		t.store.nextID++
		t.store.entryLines[entryID] = append(t.store.entryLines[entryID], ledger.JournalLine{
			ID:          t.store.nextID,
			EntryID:     entryID,
			AccountID:   in.AccountID,
			ContactID:   in.ContactID,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
		})
	}
	return nil
}

func (t *memoryTx) ReplaceLines(ctx context.Context, entryID int64, lines []ledger.LineInput) error {
	t.store.entryLines[entryID] = nil
	return t.InsertLines(ctx, entryID, lines)
}

func (t *memoryTx) UpdateDraftHeader(ctx context.Context, entryID int64, in ledger.DraftInput, totalDebit, totalCredit decimal.Decimal) error {
	return nil
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, entryID int64) (ledger.JournalEntry, error) {
	entry, ok := t.store.entries[entryID]
	if !ok {
		return ledger.JournalEntry{}, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func (t *memoryTx) GetLines(ctx context.Context, entryID int64) ([]ledger.JournalLine, error) {
	return append([]ledger.JournalLine(nil), t.store.entryLines[entryID]...), nil
}

func (t *memoryTx) MarkPosted(ctx context.Context, entryID int64, at time.Time) (bool, error) {
	entry, ok := t.store.entries[entryID]
	if !ok || entry.Status != ledger.StatusDraft {
		return false, nil
	}
	entry.Status = ledger.StatusPosted
	entry.PostedAt = &at
	t.store.entries[entryID] = entry
	return true, nil
}

func (t *memoryTx) MarkReversed(ctx context.Context, entryID int64) (bool, error) {
	entry, ok := t.store.entries[entryID]
	if !ok || entry.Status != ledger.StatusPosted {
		return false, nil
	}
	entry.Status = ledger.StatusReversed
	t.store.entries[entryID] = entry
	return true, nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, entryID int64) error {
	delete(t.store.entries, entryID)
	delete(t.store.entryLines, entryID)
	return nil
}

func (t *memoryTx) IsPeriodLocked(ctx context.Context, p ledger.Period) (bool, error) {
	return t.store.locked[p], nil
}

func (t *memoryTx) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + ":" + ref.String()
	if _, exists := t.store.links[key]; exists {
		return ledger.ErrSourceAlreadyLinked
	}
	t.store.links[key] = entryID
	return nil
}

type memoryResolver struct {
	byKey map[string]int64
}

func (r *memoryResolver) Resolve(ctx context.Context, module, key string) (mappings.AccountMapping, error) {
	id, ok := r.byKey[key]
	if !ok {
		return mappings.AccountMapping{}, mappings.ErrMappingNotFound
	}
	return mappings.AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func fullResolver() *memoryResolver {
	return &memoryResolver{byKey: map[string]int64{
		mappings.KeyReceivable:       120,
		mappings.KeyPayable:          320,
		mappings.KeySalesRevenue:     600,
		mappings.KeyPurchaseExpense:  770,
		mappings.KeyVATPayable:       391,
		mappings.KeyVATDeductible:    191,
		mappings.KeyWithholdingAsset: 193,
		mappings.KeyWithholdingOwed:  360,
	}}
}

func newInvoiceService(resolver mappings.Resolver) (*Service, *memoryStore, *memoryAudit) {
	store := newMemoryStore()
	audit := &memoryAudit{}
	svc := NewService(store, resolver, audit, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	})
	return svc, store, audit
}

func saleInput() CreateInput {
	return CreateInput{
		Number:    "FTR-2025-010",
		ContactID: 1,
		Date:      time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC),
		Type:      TypeSale,
		CreatedBy: 42,
		Lines: []LineInput{
			{Description: "Kumaş", Quantity: d("10"), UnitPrice: d("100.00"), TaxRate: 20},
		},
	}
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	svc, _, _ := newInvoiceService(fullResolver())
	inv, err := svc.Create(context.Background(), saleInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, inv.Status)
	require.True(t, inv.Subtotal.Equal(d("1000.00")))
	require.True(t, inv.TaxAmount.Equal(d("200.00")))
	require.True(t, inv.TotalAmount.Equal(d("1200.00")))
	require.Len(t, inv.Lines, 1)
}

func TestCreateInvoiceUnknownContact(t *testing.T) {
	svc, _, _ := newInvoiceService(fullResolver())
	in := saleInput()
	in.ContactID = 99
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrContactNotFound)
}

func TestPostInvoiceCreatesPostedJournalEntry(t *testing.T) {
	svc, store, audit := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)

	posted, err := svc.Post(ctx, inv.ID, 42)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)

	entry := store.entries[*posted.JournalEntryID]
	require.Equal(t, ledger.StatusPosted, entry.Status)
	require.True(t, entry.TotalDebit.Equal(d("1200.00")))
	require.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	require.Equal(t, "invoicing", entry.SourceModule)
	require.Equal(t, inv.SourceID, entry.SourceID)

	require.Equal(t, "invoice.post", audit.logs[len(audit.logs)-1].Action)
}

func TestPostInvoiceIsNotRepeatable(t *testing.T) {
	svc, _, _ := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)
	_, err = svc.Post(ctx, inv.ID, 42)
	require.NoError(t, err)

	_, err = svc.Post(ctx, inv.ID, 42)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestPostInvoiceLockedPeriodLeavesNoTrace(t *testing.T) {
	svc, store, _ := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)

	store.locked[ledger.Period{Year: 2025, Month: time.May}] = true
	_, err = svc.Post(ctx, inv.ID, 42)
	require.ErrorIs(t, err, ledger.ErrPeriodLocked)

	// Invoice keeps its prior status and no journal entry exists.
	after, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, after.Status)
	require.Nil(t, after.JournalEntryID)
	require.Empty(t, store.entries)
}

func TestPostInvoiceMissingMappingLeavesNoTrace(t *testing.T) {
	svc, store, _ := newInvoiceService(&memoryResolver{byKey: map[string]int64{}})
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)

	_, err = svc.Post(ctx, inv.ID, 42)
	require.ErrorIs(t, err, mappings.ErrMappingNotFound)
	require.Empty(t, store.entries)

	after, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, after.Status)
}

func TestCancelDraftInvoice(t *testing.T) {
	svc, store, _ := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, inv.ID, 42)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Empty(t, store.entries)
}

func TestCancelPostedInvoiceReversesJournal(t *testing.T) {
	svc, store, _ := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)
	posted, err := svc.Post(ctx, inv.ID, 42)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, posted.ID, 42)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	original := store.entries[*posted.JournalEntryID]
	require.Equal(t, ledger.StatusReversed, original.Status)

	var reversal *ledger.JournalEntry
	for _, entry := range store.entries {
		if entry.ReversalOfID != nil && *entry.ReversalOfID == original.ID {
			e := entry
			reversal = &e
		}
	}
	require.NotNil(t, reversal)
	require.Equal(t, ledger.StatusPosted, reversal.Status)
}

func TestCancelCancelledInvoiceFails(t *testing.T) {
	svc, _, _ := newInvoiceService(fullResolver())
	ctx := context.Background()

	inv, err := svc.Create(ctx, saleInput())
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, inv.ID, 42)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, inv.ID, 42)
	require.ErrorIs(t, err, ErrInvalidStatus)
}
