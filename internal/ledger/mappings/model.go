// Package mappings links integration keys to ledger accounts so the
// invoice translator and year close never hardcode the chart.
package mappings

import (
	"errors"
	"time"
)

// Well-known mapping keys under the INVOICING and CLOSE modules.
const (
	ModuleInvoicing = "INVOICING"
	ModuleClose     = "CLOSE"

	KeyReceivable       = "RECEIVABLE"        // 120 Alıcılar
	KeyPayable          = "PAYABLE"           // 320 Satıcılar
	KeySalesRevenue     = "SALES_REVENUE"     // 600 Yurtiçi Satışlar
	KeyPurchaseExpense  = "PURCHASE_EXPENSE"  // 7xx
	KeyVATPayable       = "VAT_PAYABLE"       // 391 Hesaplanan KDV
	KeyVATDeductible    = "VAT_DEDUCTIBLE"    // 191 İndirilecek KDV
	KeyWithholdingAsset = "WITHHOLDING_ASSET" // 193 Peşin Ödenen Vergiler
	KeyWithholdingOwed  = "WITHHOLDING_OWED"  // 360 Ödenecek Vergiler
	KeyRetainedEarnings = "RETAINED_EARNINGS" // 590 Dönem Net Kârı
)

// AccountMapping resolves a (module, key) pair to a ledger account.
type AccountMapping struct {
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrMappingNotFound indicates the mapping has not been configured.
var ErrMappingNotFound = errors.New("mappings: account mapping not found")
