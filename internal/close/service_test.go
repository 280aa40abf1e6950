package close

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
	"github.com/defterdar/defterdar/internal/ledger/reports"
	"github.com/defterdar/defterdar/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testAccount struct {
	code string
	name string
	typ  string
}

type memoryStore struct {
	accounts   map[int64]testAccount
	entries    map[int64]ledger.JournalEntry
	entryLines map[int64][]ledger.JournalLine
	locked     map[ledger.Period]bool
	links      map[string]int64
	nextID     int64
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: map[int64]testAccount{
			100: {"100", "Kasa", "ASSET"},
			500: {"500", "Sermaye", "EQUITY"},
			590: {"590", "Dönem Net Kârı", "EQUITY"},
			600: {"600", "Yurtiçi Satışlar", "REVENUE"},
			770: {"770", "Genel Yönetim Giderleri", "EXPENSE"},
		},
		entries:    make(map[int64]ledger.JournalEntry),
		entryLines: make(map[int64][]ledger.JournalLine),
		locked:     make(map[ledger.Period]bool),
		links:      make(map[string]int64),
	}
}

func (s *memoryStore) snapshot() *memoryStore {
	return &memoryStore{
		accounts:   maps.Clone(s.accounts),
		entries:    maps.Clone(s.entries),
		entryLines: maps.Clone(s.entryLines),
		locked:     maps.Clone(s.locked),
		links:      maps.Clone(s.links),
		nextID:     s.nextID,
	}
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		*s = *snap
		return err
	}
	return nil
}

// seedPosted inserts a posted entry with the given account/debit/credit
// triples, bypassing validation so tests can also seed corrupt data.
func (s *memoryStore) seedPosted(date time.Time, number string, lines ...[3]any) {
	s.nextID++
	entryID := s.nextID
	var totalDebit, totalCredit decimal.Decimal
	for _, raw := range lines {
		accountID := int64(raw[0].(int))
		debit := d(raw[1].(string))
		credit := d(raw[2].(string))
		s.nextID++
		s.entryLines[entryID] = append(s.entryLines[entryID], ledger.JournalLine{
			ID: s.nextID, EntryID: entryID, AccountID: accountID, Debit: debit, Credit: credit,
		})
		totalDebit = totalDebit.Add(debit)
		totalCredit = totalCredit.Add(credit)
	}
	posted := date
	s.entries[entryID] = ledger.JournalEntry{
		ID: entryID, Number: number, Date: date, Status: ledger.StatusPosted,
		TotalDebit: totalDebit, TotalCredit: totalCredit, PostedAt: &posted,
	}
}

func (t *memoryTx) AccountBalances(ctx context.Context, asOf time.Time) ([]reports.AccountBalance, error) {
	sums := make(map[int64]*reports.AccountBalance)
	for entryID, entry := range t.store.entries {
		if entry.Status != ledger.StatusPosted || entry.Date.After(asOf) {
			continue
		}
		for _, line := range t.store.entryLines[entryID] {
			b, ok := sums[line.AccountID]
			if !ok {
				acc := t.store.accounts[line.AccountID]
				b = &reports.AccountBalance{AccountID: line.AccountID, Code: acc.code, Name: acc.name, Type: acc.typ}
				sums[line.AccountID] = b
			}
			b.Debit = b.Debit.Add(line.Debit)
			b.Credit = b.Credit.Add(line.Credit)
		}
	}
	var out []reports.AccountBalance
	for _, b := range sums {
		out = append(out, *b)
	}
	return out, nil
}

func (t *memoryTx) CountDraftsInYear(ctx context.Context, year int) (int, error) {
	count := 0
	for _, entry := range t.store.entries {
		if entry.Status == ledger.StatusDraft && entry.Date.Year() == year {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) LockPeriod(ctx context.Context, year, month int, actorID int64, at time.Time) error {
	t.store.locked[ledger.Period{Year: year, Month: time.Month(month)}] = true
	return nil
}

func (t *memoryTx) AccountFlags(ctx context.Context, ids []int64) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := t.store.accounts[id]; ok {
			flags[id] = true
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
		ID: t.store.nextID, Number: in.Number, Description: in.Description, Date: in.Date,
		Status: ledger.StatusDraft, TotalDebit: totalDebit, TotalCredit: totalCredit,
		SourceModule: in.SourceModule, SourceID: in.SourceID, CreatedBy: in.CreatedBy,
	}
	t.store.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []ledger.LineInput) error {
	for _, in := range lines {
		t.store.nextID++
		t.store.entryLines[entryID] = append(t.store.entryLines[entryID], ledger.JournalLine{
			ID: t.store.nextID, EntryID: entryID, AccountID: in.AccountID,
			Debit: in.Debit, Credit: in.Credit, Description: in.Description,
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
	retained int64
}

func (r *memoryResolver) Resolve(ctx context.Context, module, key string) (mappings.AccountMapping, error) {
	if r.retained == 0 {
		return mappings.AccountMapping{}, mappings.ErrMappingNotFound
	}
	return mappings.AccountMapping{Module: module, Key: key, AccountID: r.retained}, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newCloseService(store *memoryStore) (*Service, *memoryAudit) {
	audit := &memoryAudit{}
	svc := NewService(store, &memoryResolver{retained: 590}, audit, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.January, 2, 8, 0, 0, 0, time.UTC)
	})
	return svc, audit
}

func seedProfitableYear(store *memoryStore) {
	// Capital in, a sale, and an expense during 2025.
	store.seedPosted(time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), "JE-1",
		[3]any{100, "500.00", "0"}, [3]any{500, "0", "500.00"})
	store.seedPosted(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), "JE-2",
		[3]any{100, "1000.00", "0"}, [3]any{600, "0", "1000.00"})
	store.seedPosted(time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), "JE-3",
		[3]any{770, "400.00", "0"}, [3]any{100, "0", "400.00"})
}

func balanceOf(t *testing.T, store *memoryStore, accountID int64, asOf time.Time) decimal.Decimal {
	t.Helper()
	balances, err := (&memoryTx{store: store}).AccountBalances(context.Background(), asOf)
	require.NoError(t, err)
	for _, b := range balances {
		if b.AccountID == accountID {
			return b.Debit.Sub(b.Credit)
		}
	}
	return decimal.Zero
}

func TestCloseYear(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	svc, audit := newCloseService(store)

	result, err := svc.CloseYear(context.Background(), 2025, 42)
	require.NoError(t, err)

	require.Equal(t, "CLS-2025", result.ClosingEntry.Number)
	require.Equal(t, ledger.StatusPosted, result.ClosingEntry.Status)
	require.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), result.ClosingEntry.Date)

	require.Equal(t, "OPN-2026", result.OpeningEntry.Number)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), result.OpeningEntry.Date)

	require.Len(t, result.LockedPeriods, 12)
	require.True(t, store.locked[ledger.Period{Year: 2025, Month: time.July}])

	// The closing entry nets the whole ledger to zero at year end; the
	// opening entry alone carries balances into 2026.
	yearEnd := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	for _, accountID := range []int64{100, 500, 590, 600, 770} {
		require.True(t, balanceOf(t, store, accountID, yearEnd).IsZero(), "account %d", accountID)
	}

	require.Equal(t, "year.close", audit.logs[len(audit.logs)-1].Action)
}

func TestCloseYearKeepsNextYearBalancesIntact(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	svc, _ := newCloseService(store)

	midYear := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	kasaBefore := balanceOf(t, store, 100, midYear)
	require.True(t, kasaBefore.Equal(d("1100.00")))

	_, err := svc.CloseYear(context.Background(), 2025, 42)
	require.NoError(t, err)

	// Balance-sheet accounts read after the close must match the
	// pre-close balances, not double them.
	require.True(t, balanceOf(t, store, 100, midYear).Equal(kasaBefore))
	require.True(t, balanceOf(t, store, 500, midYear).Equal(d("-500.00")))
	require.True(t, balanceOf(t, store, 590, midYear).Equal(d("-600.00")))
	require.True(t, balanceOf(t, store, 600, midYear).IsZero())
	require.True(t, balanceOf(t, store, 770, midYear).IsZero())
}

func TestCloseYearCarriesOpeningBalances(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	svc, _ := newCloseService(store)

	result, err := svc.CloseYear(context.Background(), 2025, 42)
	require.NoError(t, err)

	byAccount := make(map[int64]ledger.JournalLine)
	for _, line := range store.entryLines[result.OpeningEntry.ID] {
		byAccount[line.AccountID] = line
	}
	require.True(t, byAccount[100].Debit.Equal(d("1100.00")))
	require.True(t, byAccount[500].Credit.Equal(d("500.00")))
	require.True(t, byAccount[590].Credit.Equal(d("600.00")))
	_, hasRevenue := byAccount[600]
	require.False(t, hasRevenue)
}

func TestCloseYearAbortsOnDrafts(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	store.nextID++
	store.entries[store.nextID] = ledger.JournalEntry{
		ID: store.nextID, Number: "JE-DRAFT", Status: ledger.StatusDraft,
		Date: time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC),
	}
	svc, _ := newCloseService(store)

	_, err := svc.CloseYear(context.Background(), 2025, 42)
	require.ErrorIs(t, err, ErrDraftsInYear)

	// All-or-nothing: no month locked, no closing entry posted.
	require.Empty(t, store.locked)
	for _, entry := range store.entries {
		require.NotEqual(t, "CLS-2025", entry.Number)
	}
}

func TestCloseYearRejectsCorruptedLedger(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	// A posted entry whose lines do not balance.
	store.seedPosted(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "JE-BAD",
		[3]any{100, "10.00", "0"})
	svc, _ := newCloseService(store)

	_, err := svc.CloseYear(context.Background(), 2025, 42)
	require.ErrorIs(t, err, ErrUnbalancedClosing)
	require.Empty(t, store.locked)
}

func TestCloseYearLossDebitsRetainedEarnings(t *testing.T) {
	store := newMemoryStore()
	store.seedPosted(time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), "JE-1",
		[3]any{100, "500.00", "0"}, [3]any{500, "0", "500.00"})
	store.seedPosted(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), "JE-2",
		[3]any{770, "300.00", "0"}, [3]any{100, "0", "300.00"})
	svc, _ := newCloseService(store)

	result, err := svc.CloseYear(context.Background(), 2025, 42)
	require.NoError(t, err)

	// The 300 loss lands as an opening-entry debit on retained earnings.
	var retained ledger.JournalLine
	for _, line := range store.entryLines[result.OpeningEntry.ID] {
		if line.AccountID == 590 {
			retained = line
		}
	}
	require.True(t, retained.Debit.Equal(d("300.00")))
	require.True(t, balanceOf(t, store, 590, result.OpeningEntry.Date).Equal(d("300.00")))
}

func TestCloseYearMissingMapping(t *testing.T) {
	store := newMemoryStore()
	seedProfitableYear(store)
	svc := NewService(store, &memoryResolver{}, nil, nil)

	_, err := svc.CloseYear(context.Background(), 2025, 42)
	require.ErrorIs(t, err, mappings.ErrMappingNotFound)
}

func TestBuildClosingLinesEmptyLedger(t *testing.T) {
	_, err := BuildClosingLines(nil)
	require.ErrorIs(t, err, ledger.ErrEmptyEntry)
}

func TestBuildClosingLinesNetsBalanceSheetAccounts(t *testing.T) {
	lines, err := BuildClosingLines([]reports.AccountBalance{
		{AccountID: 100, Type: "ASSET", Debit: d("500.00"), Credit: d("0")},
		{AccountID: 500, Type: "EQUITY", Debit: d("0"), Credit: d("500.00")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byAccount := make(map[int64]ledger.LineInput)
	for _, line := range lines {
		byAccount[line.AccountID] = line
	}
	require.True(t, byAccount[100].Credit.Equal(d("500.00")))
	require.True(t, byAccount[500].Debit.Equal(d("500.00")))
}

func TestBuildOpeningLinesFoldsResultIntoRetained(t *testing.T) {
	lines, err := BuildOpeningLines([]reports.AccountBalance{
		{AccountID: 100, Type: "ASSET", Debit: d("1000.00"), Credit: d("0")},
		{AccountID: 590, Type: "EQUITY", Debit: d("0"), Credit: d("250.00")},
		{AccountID: 600, Type: "REVENUE", Debit: d("0"), Credit: d("750.00")},
	}, 590)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byAccount := make(map[int64]ledger.LineInput)
	for _, line := range lines {
		byAccount[line.AccountID] = line
	}
	require.True(t, byAccount[100].Debit.Equal(d("1000.00")))
	// Prior retained 250 plus this year's 750 result.
	require.True(t, byAccount[590].Credit.Equal(d("1000.00")))
}
