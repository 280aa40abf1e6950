// Package reports derives balances and statements from posted journal
// entries. All projections are pure reads over POSTED data; they never
// block writers.
package reports

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountBalance aggregates posted debit/credit sums for one account.
type AccountBalance struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// GroupKey returns the top-level chart group for the account code, e.g.
// "120" for "120.01".
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	return a.Code
}

// TrialBalanceRow reports an account's net balance on the appropriate
// side. An asset account with a net credit balance still shows on the
// credit side rather than being hidden.
type TrialBalanceRow struct {
	AccountCode   string          `json:"account_code"`
	AccountName   string          `json:"account_name"`
	Group         string          `json:"group"`
	DebitBalance  decimal.Decimal `json:"debit_balance"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// TrialBalance is the rendered report.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

// BuildTrialBalance nets each account's posted sums. Input is expected in
// account code order; the builder preserves it.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	tb := TrialBalance{Rows: make([]TrialBalanceRow, 0, len(balances))}
	for _, acc := range balances {
		net := acc.Debit.Sub(acc.Credit)
		row := TrialBalanceRow{AccountCode: acc.Code, AccountName: acc.Name, Group: acc.GroupKey()}
		if net.Sign() >= 0 {
			row.DebitBalance = net
		} else {
			row.CreditBalance = net.Neg()
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.DebitBalance)
		tb.TotalCredit = tb.TotalCredit.Add(row.CreditBalance)
	}
	return tb
}
