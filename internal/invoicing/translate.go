package invoicing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/defterdar/defterdar/internal/ledger"
)

// PostingAccounts holds the resolved ledger accounts the translator
// posts against. Only the accounts relevant to the invoice direction
// need to be set.
type PostingAccounts struct {
	Receivable       int64
	Payable          int64
	SalesRevenue     int64
	PurchaseExpense  int64
	VATPayable       int64
	VATDeductible    int64
	WithholdingAsset int64
	WithholdingOwed  int64
}

// Translate maps an invoice onto a balanced journal draft. The mapping
// is deterministic: one aggregate receivable/payable line tagged with
// the contact, one revenue/VAT (or expense/input-VAT) pair per tax-rate
// bucket of the invoice lines in ascending rate order, and an aggregate
// withholding line. A RETURN mirrors the signs of the mapping its
// contact kind implies.
func Translate(inv Invoice, kind ContactKind, accounts PostingAccounts) (ledger.DraftInput, error) {
	direction := inv.Type
	mirrored := false
	if inv.Type == TypeReturn {
		mirrored = true
		switch kind {
		case KindCustomer:
			direction = TypeSale
		case KindSupplier:
			direction = TypePurchase
		default:
			return ledger.DraftInput{}, fmt.Errorf("%w: unknown contact kind %q", ErrValidation, kind)
		}
	}

	contactID := inv.ContactID
	b := lineBuilder{mirrored: mirrored, description: inv.Number}
	switch direction {
	case TypeSale:
		b.debit(accounts.Receivable, inv.TotalAmount, &contactID)
		for _, bucket := range taxBuckets(inv.Lines) {
			b.credit(accounts.SalesRevenue, bucket.net, nil)
			b.credit(accounts.VATPayable, bucket.tax, nil)
		}
		b.debit(accounts.WithholdingAsset, inv.WithholdAmount, nil)
	case TypePurchase:
		for _, bucket := range taxBuckets(inv.Lines) {
			b.debit(accounts.PurchaseExpense, bucket.net, nil)
			b.debit(accounts.VATDeductible, bucket.tax, nil)
		}
		b.credit(accounts.Payable, inv.TotalAmount, &contactID)
		b.credit(accounts.WithholdingOwed, inv.WithholdAmount, nil)
	default:
		return ledger.DraftInput{}, fmt.Errorf("%w: unknown invoice type %q", ErrValidation, inv.Type)
	}

	draft := ledger.DraftInput{
		Number:       "INV-" + inv.Number,
		Description:  fmt.Sprintf("Invoice %s", inv.Number),
		Date:         inv.Date,
		CreatedBy:    inv.CreatedBy,
		SourceModule: "invoicing",
		SourceID:     inv.SourceID,
		Lines:        b.lines,
	}
	if err := draft.Validate(); err != nil {
		return ledger.DraftInput{}, err
	}
	return draft, nil
}

// taxBucket aggregates invoice lines sharing one VAT rate.
type taxBucket struct {
	rate int
	net  decimal.Decimal
	tax  decimal.Decimal
}

func taxBuckets(lines []InvoiceLine) []taxBucket {
	byRate := make(map[int]int, len(lines))
	var buckets []taxBucket
	for _, line := range lines {
		idx, ok := byRate[line.TaxRate]
		if !ok {
			idx = len(buckets)
			byRate[line.TaxRate] = idx
			buckets = append(buckets, taxBucket{rate: line.TaxRate})
		}
		net := line.Quantity.Mul(line.UnitPrice).Round(2)
		buckets[idx].net = buckets[idx].net.Add(net)
		buckets[idx].tax = buckets[idx].tax.Add(line.TaxAmount)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].rate < buckets[j].rate })
	return buckets
}

// lineBuilder accumulates journal lines, skipping zero amounts and
// swapping sides when mirrored.
type lineBuilder struct {
	mirrored    bool
	description string
	lines       []ledger.LineInput
}

func (b *lineBuilder) debit(accountID int64, amount decimal.Decimal, contactID *int64) {
	b.add(accountID, amount, contactID, !b.mirrored)
}

func (b *lineBuilder) credit(accountID int64, amount decimal.Decimal, contactID *int64) {
	b.add(accountID, amount, contactID, b.mirrored)
}

func (b *lineBuilder) add(accountID int64, amount decimal.Decimal, contactID *int64, debitSide bool) {
	if amount.IsZero() {
		return
	}
	line := ledger.LineInput{AccountID: accountID, ContactID: contactID, Description: b.description}
	if debitSide {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	b.lines = append(b.lines, line)
}
