// Package ledger implements the double-entry journal engine: balanced
// draft entries posted against the chart of accounts, guarded by period
// locks, with reversal as the only way to undo a posted entry.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus enumerates the journal entry lifecycle.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusReversed EntryStatus = "REVERSED"
)

// Period identifies a (year, month) accounting period.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf derives the accounting period from a journal date.
func PeriodOf(date time.Time) Period {
	return Period{Year: date.Year(), Month: date.Month()}
}

// String renders the period as "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// JournalLine stores a debit or credit amount for an account. Exactly one
// of Debit/Credit is nonzero on a valid line.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	ContactID   *int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// JournalEntry captures a balanced set of postings recorded as one atomic
// accounting transaction. TotalDebit/TotalCredit are cached copies of the
// line sums and always equal the recomputed values.
type JournalEntry struct {
	ID           int64
	Number       string
	Description  string
	Date         time.Time
	Status       EntryStatus
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	ReversalOfID *int64
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	PostedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// Period returns the accounting period the entry is dated in.
func (e JournalEntry) Period() Period {
	return PeriodOf(e.Date)
}

// LineInput describes a journal line for a draft entry.
type LineInput struct {
	AccountID   int64
	ContactID   *int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// DraftInput groups the fields required to create or edit a draft entry.
type DraftInput struct {
	Number       string
	Description  string
	Date         time.Time
	CreatedBy    int64
	SourceModule string
	SourceID     uuid.UUID
	ReversalOfID *int64
	Lines        []LineInput
}

// ReverseInput wraps parameters for reversing a posted entry. Date, when
// set, dates the compensating entry in a different period than the
// original; both periods are then checked for locks.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Description string
	Date        *time.Time
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status EntryStatus
	Period *Period
	Limit  int
	Offset int
}

var (
	// ErrValidation indicates a malformed line or draft.
	ErrValidation = errors.New("ledger: invalid journal entry")
	// ErrUnbalanced indicates sum(debit) != sum(credit).
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrEmptyEntry indicates a draft without lines.
	ErrEmptyEntry = errors.New("ledger: journal requires at least one line")
	// ErrUnknownAccount indicates a line referencing a missing account.
	ErrUnknownAccount = errors.New("ledger: unknown account")
	// ErrAccountInactive indicates a line referencing a deactivated account.
	ErrAccountInactive = errors.New("ledger: account is inactive")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrInvalidStatus indicates an illegal lifecycle transition.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrPeriodLocked indicates the entry's period is locked.
	ErrPeriodLocked = errors.New("ledger: period locked")
	// ErrDuplicateNumber indicates the journal number is already used.
	ErrDuplicateNumber = errors.New("ledger: journal number already used")
	// ErrSourceAlreadyLinked indicates an idempotency conflict on the source link.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked")
)

// Validate ensures the draft meets the balance invariant and line rules.
// Amounts carry at most two decimal places; comparisons are exact.
func (in DraftInput) Validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return fmt.Errorf("%w: number required", ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrValidation)
	}
	if len(in.Lines) == 0 {
		return ErrEmptyEntry
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", ErrValidation, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrValidation, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must have exactly one of debit/credit", ErrValidation, idx)
		}
		if line.Debit.Exponent() < -2 || line.Credit.Exponent() < -2 {
			return fmt.Errorf("%w: line %d amount exceeds two decimal places", ErrValidation, idx)
		}
	}
	debit, credit := SumLines(in.Lines)
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

// SumLines recomputes the debit and credit totals for a set of lines.
func SumLines(lines []LineInput) (debit, credit decimal.Decimal) {
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// ReversedLines returns the compensating lines for a posted entry, with
// debit and credit swapped per line.
func ReversedLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			ContactID:   line.ContactID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}
