package accounts

import (
	"errors"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. Codes are hierarchical
// strings such as "120.01" under the Turkish uniform chart.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrDuplicateCode indicates the account code is already used.
	ErrDuplicateCode = errors.New("accounts: code already used")
	// ErrReferenced indicates the account appears on journal lines and
	// cannot be deleted, only deactivated.
	ErrReferenced = errors.New("accounts: account referenced by journal lines")
	// ErrInvalidType indicates an unknown account category.
	ErrInvalidType = errors.New("accounts: invalid account type")
)
