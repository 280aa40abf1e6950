// Package close orchestrates the fiscal year close: a closing entry
// zeroing revenue and expense into retained earnings, an opening entry
// carrying balance-sheet accounts into the new year, and period locks
// on all twelve months.
package close

import (
	"errors"

	"github.com/defterdar/defterdar/internal/ledger"
)

// Result reports the artefacts of a completed year close.
type Result struct {
	Year          int                 `json:"year"`
	ClosingEntry  ledger.JournalEntry `json:"closing_entry"`
	OpeningEntry  ledger.JournalEntry `json:"opening_entry"`
	LockedPeriods []ledger.Period     `json:"locked_periods"`
}

var (
	// ErrUnbalancedClosing indicates the computed closing entry does not
	// balance, which points at corrupted posted data upstream. The close
	// must not force-balance.
	ErrUnbalancedClosing = errors.New("close: computed closing entry does not balance")
	// ErrDraftsInYear indicates unposted drafts remain in the year.
	ErrDraftsInYear = errors.New("close: year has unposted draft entries")
	// ErrInvalidYear indicates a year outside the supported range.
	ErrInvalidYear = errors.New("close: invalid year")
)
