// Package invoicing manages sale and purchase invoices and translates
// them into balanced journal entries.
package invoicing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes the ledger direction of an invoice.
type InvoiceType string

const (
	TypeSale     InvoiceType = "SALE"
	TypePurchase InvoiceType = "PURCHASE"
	TypeReturn   InvoiceType = "RETURN"
)

// Valid reports whether the type is known.
func (t InvoiceType) Valid() bool {
	switch t {
	case TypeSale, TypePurchase, TypeReturn:
		return true
	}
	return false
}

// InvoiceStatus enumerates the invoice lifecycle.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusPosted    InvoiceStatus = "POSTED"
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// ContactKind distinguishes customers from suppliers.
type ContactKind string

const (
	KindCustomer ContactKind = "CUSTOMER"
	KindSupplier ContactKind = "SUPPLIER"
)

// Contact is a customer or supplier the invoice is issued to or from.
type Contact struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Kind      ContactKind `json:"kind"`
	TaxNumber string      `json:"tax_number,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// InvoiceLine carries quantity, unit price and the computed tax and
// withholding amounts. Computed fields are derived by ComputeLine and
// never accepted from input.
type InvoiceLine struct {
	ID             int64            `json:"id"`
	InvoiceID      int64            `json:"invoice_id"`
	Description    string           `json:"description"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	TaxRate        int              `json:"tax_rate"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	WithholdRate   *decimal.Decimal `json:"withhold_rate,omitempty"`
	WithholdAmount decimal.Decimal  `json:"withhold_amount"`
	LineTotal      decimal.Decimal  `json:"line_total"`
}

// Invoice owns at most one generated journal entry once posted.
type Invoice struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	ContactID      int64           `json:"contact_id"`
	Date           time.Time       `json:"date"`
	Type           InvoiceType     `json:"type"`
	Status         InvoiceStatus   `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	WithholdAmount decimal.Decimal `json:"withhold_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	SourceID       uuid.UUID       `json:"source_id"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []InvoiceLine   `json:"lines,omitempty"`
}

// LineInput is the caller-supplied part of an invoice line.
type LineInput struct {
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TaxRate      int
	WithholdRate *decimal.Decimal
}

// CreateInput groups fields for creating a draft invoice.
type CreateInput struct {
	Number    string
	ContactID int64
	Date      time.Time
	Type      InvoiceType
	CreatedBy int64
	Lines     []LineInput
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status    InvoiceStatus
	Type      InvoiceType
	ContactID int64
	Limit     int
	Offset    int
}

var (
	// ErrValidation indicates malformed invoice input.
	ErrValidation = errors.New("invoicing: invalid invoice")
	// ErrInvalidTaxRate indicates a rate outside the configured set.
	ErrInvalidTaxRate = errors.New("invoicing: unsupported tax rate")
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("invoicing: invoice not found")
	// ErrContactNotFound indicates a missing contact.
	ErrContactNotFound = errors.New("invoicing: contact not found")
	// ErrInvalidStatus indicates an illegal lifecycle transition.
	ErrInvalidStatus = errors.New("invoicing: invalid status transition")
	// ErrDuplicateNumber indicates the invoice number is already used.
	ErrDuplicateNumber = errors.New("invoicing: invoice number already used")
)

// taxRates holds the configured KDV percentages.
var taxRates = map[int]bool{0: true, 1: true, 10: true, 20: true}

// ValidTaxRate reports whether rate is one of the configured KDV rates.
func ValidTaxRate(rate int) bool {
	return taxRates[rate]
}
