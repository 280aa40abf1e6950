package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/defterdar/defterdar/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProjectionCache invalidates derived balance projections after a
// posting or reversal changes the ledger.
type ProjectionCache interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates creating, editing, posting, and reversing journal
// entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache ProjectionCache
	now   func() time.Time
}

// NewService constructs the journal engine service.
func NewService(repo RepositoryPort, audit AuditPort, cache ProjectionCache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateDraft validates and persists a new draft entry.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = CreateDraftTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// UpdateDraft replaces the header and lines of a draft entry, re-running
// full balance validation. Posted and reversed entries are immutable.
func (s *Service) UpdateDraft(ctx context.Context, entryID int64, input DraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidStatus
		}
		for _, p := range periodSet(current.Period(), PeriodOf(input.Date)) {
			locked, err := tx.IsPeriodLocked(ctx, p)
			if err != nil {
				return err
			}
			if locked {
				return ErrPeriodLocked
			}
		}
		if err := checkAccounts(ctx, tx, input.Lines); err != nil {
			return err
		}
		debit, credit := SumLines(input.Lines)
		if err := tx.UpdateDraftHeader(ctx, entryID, input, debit, credit); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, entryID, input.Lines); err != nil {
			return err
		}
		entry = current
		entry.Number = input.Number
		entry.Description = input.Description
		entry.Date = input.Date
		entry.TotalDebit = debit
		entry.TotalCredit = credit
		entry.Lines, err = tx.GetLines(ctx, entryID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Post transitions a draft entry to POSTED. The period lock is
// re-validated at the moment of posting; concurrent posts of the same
// entry resolve through a compare-and-swap and the loser receives
// ErrInvalidStatus.
func (s *Service) Post(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = PostEntryTx(ctx, tx, entryID, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actorID, "journal.post", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// Reverse creates and posts a compensating entry with debit/credit
// swapped per line, and marks the original REVERSED. Both happen in one
// transaction; the ledger is append-only.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = ReverseEntryTx(ctx, tx, input, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, input.ActorID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	return reversal, nil
}

// DeleteDraft removes a draft entry. Drafts have no ledger effect, so no
// period check applies; posted entries can only be compensated.
func (s *Service) DeleteDraft(ctx context.Context, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidStatus
		}
		return tx.DeleteEntry(ctx, entryID)
	})
}

// Get loads a single entry with lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

// CreateDraftTx runs the draft creation state machine on an existing
// transaction. Exposed so invoice posting and year close can compose it
// with their own writes.
func CreateDraftTx(ctx context.Context, tx TxRepository, input DraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	locked, err := tx.IsPeriodLocked(ctx, PeriodOf(input.Date))
	if err != nil {
		return JournalEntry{}, err
	}
	if locked {
		return JournalEntry{}, ErrPeriodLocked
	}
	if err := checkAccounts(ctx, tx, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	debit, credit := SumLines(input.Lines)
	entry, err := tx.InsertEntry(ctx, input, debit, credit)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, entry.ID, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	if input.SourceModule != "" {
		if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, entry.ID); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Lines, err = tx.GetLines(ctx, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// PostEntryTx transitions DRAFT -> POSTED on an existing transaction.
func PostEntryTx(ctx context.Context, tx TxRepository, entryID int64, now time.Time) (JournalEntry, error) {
	entry, err := tx.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Status != StatusDraft {
		return JournalEntry{}, ErrInvalidStatus
	}
	locked, err := tx.IsPeriodLocked(ctx, entry.Period())
	if err != nil {
		return JournalEntry{}, err
	}
	if locked {
		return JournalEntry{}, ErrPeriodLocked
	}
	ok, err := tx.MarkPosted(ctx, entryID, now)
	if err != nil {
		return JournalEntry{}, err
	}
	if !ok {
		return JournalEntry{}, ErrInvalidStatus
	}
	entry.Status = StatusPosted
	entry.PostedAt = &now
	entry.Lines, err = tx.GetLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// CreatePostedTx creates a draft and posts it within the same
// transaction; either both effects commit or neither does.
func CreatePostedTx(ctx context.Context, tx TxRepository, input DraftInput, now time.Time) (JournalEntry, error) {
	entry, err := CreateDraftTx(ctx, tx, input)
	if err != nil {
		return JournalEntry{}, err
	}
	return PostEntryTx(ctx, tx, entry.ID, now)
}

// ReverseEntryTx runs the reversal state machine on an existing
// transaction: insert the compensating entry, post it, and mark the
// original REVERSED, atomically.
func ReverseEntryTx(ctx context.Context, tx TxRepository, input ReverseInput, now time.Time) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", ErrValidation)
	}
	original, err := tx.GetEntryForUpdate(ctx, input.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.Status != StatusPosted {
		return JournalEntry{}, ErrInvalidStatus
	}
	targetDate := original.Date
	if input.Date != nil {
		targetDate = *input.Date
	}
	for _, p := range periodSet(original.Period(), PeriodOf(targetDate)) {
		locked, err := tx.IsPeriodLocked(ctx, p)
		if err != nil {
			return JournalEntry{}, err
		}
		if locked {
			return JournalEntry{}, ErrPeriodLocked
		}
	}
	lines, err := tx.GetLines(ctx, input.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	originalID := original.ID
	posting := DraftInput{
		Number:       original.Number + "-R",
		Description:  defaultReversalDescription(input.Description, original.Number),
		Date:         targetDate,
		CreatedBy:    input.ActorID,
		SourceModule: "ledger:reversal",
		SourceID:     uuid.New(),
		ReversalOfID: &originalID,
		Lines:        ReversedLines(lines),
	}
	reversal, err := CreatePostedTx(ctx, tx, posting, now)
	if err != nil {
		return JournalEntry{}, err
	}
	ok, err := tx.MarkReversed(ctx, originalID)
	if err != nil {
		return JournalEntry{}, err
	}
	if !ok {
		return JournalEntry{}, ErrInvalidStatus
	}
	return reversal, nil
}

func checkAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	flags, err := tx.AccountFlags(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		active, ok := flags[id]
		if !ok {
			return fmt.Errorf("%w: account %d", ErrUnknownAccount, id)
		}
		if !active {
			return fmt.Errorf("%w: account %d", ErrAccountInactive, id)
		}
	}
	return nil
}

func periodSet(ps ...Period) []Period {
	out := ps[:0:0]
	for _, p := range ps {
		dup := false
		for _, q := range out {
			if q == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

func defaultReversalDescription(desc, number string) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of %s", number)
}
