package invoicing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ComputeLine derives the tax, withholding and total amounts for one
// line. It is the single recompute function shared by invoice creation
// and journal translation; amounts are rounded half-up to 2 decimals
// per line.
func ComputeLine(in LineInput) (InvoiceLine, error) {
	if strings.TrimSpace(in.Description) == "" {
		return InvoiceLine{}, fmt.Errorf("%w: line description required", ErrValidation)
	}
	if !in.Quantity.IsPositive() {
		return InvoiceLine{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return InvoiceLine{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if !ValidTaxRate(in.TaxRate) {
		return InvoiceLine{}, fmt.Errorf("%w: %d", ErrInvalidTaxRate, in.TaxRate)
	}
	if in.WithholdRate != nil && (in.WithholdRate.IsNegative() || in.WithholdRate.GreaterThan(oneHundred)) {
		return InvoiceLine{}, fmt.Errorf("%w: withhold rate must be between 0 and 100", ErrValidation)
	}

	net := in.Quantity.Mul(in.UnitPrice).Round(2)
	tax := net.Mul(decimal.NewFromInt(int64(in.TaxRate))).Div(oneHundred).Round(2)
	withhold := decimal.Zero
	if in.WithholdRate != nil {
		withhold = net.Mul(*in.WithholdRate).Div(oneHundred).Round(2)
	}

	return InvoiceLine{
		Description:    in.Description,
		Quantity:       in.Quantity,
		UnitPrice:      in.UnitPrice,
		TaxRate:        in.TaxRate,
		TaxAmount:      tax,
		WithholdRate:   in.WithholdRate,
		WithholdAmount: withhold,
		LineTotal:      net.Add(tax).Sub(withhold),
	}, nil
}

// Totals aggregates the computed line amounts for an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Withhold decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals computes all lines and sums them. Subtotal is the sum of
// net amounts; Total = Subtotal + Tax - Withhold.
func ComputeTotals(inputs []LineInput) ([]InvoiceLine, Totals, error) {
	if len(inputs) == 0 {
		return nil, Totals{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	lines := make([]InvoiceLine, 0, len(inputs))
	var totals Totals
	for _, in := range inputs {
		line, err := ComputeLine(in)
		if err != nil {
			return nil, Totals{}, err
		}
		lines = append(lines, line)
		net := line.Quantity.Mul(line.UnitPrice).Round(2)
		totals.Subtotal = totals.Subtotal.Add(net)
		totals.Tax = totals.Tax.Add(line.TaxAmount)
		totals.Withhold = totals.Withhold.Add(line.WithholdAmount)
	}
	totals.Total = totals.Subtotal.Add(totals.Tax).Sub(totals.Withhold)
	return lines, totals, nil
}
