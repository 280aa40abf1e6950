package reports

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"
)

// Movement is one posted journal line viewed from an account or contact.
type Movement struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// LedgerRow is a movement with the running balance after it. Balances
// are debit-positive: balance = opening + debit - credit.
type LedgerRow struct {
	Movement
	Balance decimal.Decimal `json:"balance"`
}

// RunningBalance yields ledger rows lazily in input order, carrying the
// running balance from the opening balance preceding the range. The
// sequence is restartable; each iteration recomputes from opening.
func RunningBalance(opening decimal.Decimal, movements []Movement) iter.Seq[LedgerRow] {
	return func(yield func(LedgerRow) bool) {
		balance := opening
		for _, m := range movements {
			balance = balance.Add(m.Debit).Sub(m.Credit)
			if !yield(LedgerRow{Movement: m, Balance: balance}) {
				return
			}
		}
	}
}

// CollectLedger materialises the running-balance sequence.
func CollectLedger(opening decimal.Decimal, movements []Movement) []LedgerRow {
	rows := make([]LedgerRow, 0, len(movements))
	for row := range RunningBalance(opening, movements) {
		rows = append(rows, row)
	}
	return rows
}

// AccountLedger is the rendered account statement for a date range.
type AccountLedger struct {
	AccountID int64           `json:"account_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Opening   decimal.Decimal `json:"opening"`
	Rows      []LedgerRow     `json:"rows"`
	Closing   decimal.Decimal `json:"closing"`
}

// ContactStatement is the same projection restricted to lines tagged
// with a customer or supplier.
type ContactStatement struct {
	ContactID int64           `json:"contact_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Opening   decimal.Decimal `json:"opening"`
	Rows      []LedgerRow     `json:"rows"`
	Closing   decimal.Decimal `json:"closing"`
}
