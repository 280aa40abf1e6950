package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestComputeLine(t *testing.T) {
	line, err := ComputeLine(LineInput{
		Description: "Danışmanlık",
		Quantity:    d("2"),
		UnitPrice:   d("500.00"),
		TaxRate:     20,
	})
	require.NoError(t, err)
	require.True(t, line.TaxAmount.Equal(d("200.00")))
	require.True(t, line.WithholdAmount.IsZero())
	require.True(t, line.LineTotal.Equal(d("1200.00")))
}

func TestComputeLineWithWithholding(t *testing.T) {
	line, err := ComputeLine(LineInput{
		Description:  "Serbest meslek",
		Quantity:     d("1"),
		UnitPrice:    d("1000.00"),
		TaxRate:      20,
		WithholdRate: dp("20"),
	})
	require.NoError(t, err)
	require.True(t, line.TaxAmount.Equal(d("200.00")))
	require.True(t, line.WithholdAmount.Equal(d("200.00")))
	// 1000 + 200 tax - 200 withheld
	require.True(t, line.LineTotal.Equal(d("1000.00")))
}

func TestComputeLineRounding(t *testing.T) {
	// 3 x 33.33 = 99.99; 1% KDV = 0.9999 -> 1.00
	line, err := ComputeLine(LineInput{
		Description: "Pirinç",
		Quantity:    d("3"),
		UnitPrice:   d("33.33"),
		TaxRate:     1,
	})
	require.NoError(t, err)
	require.True(t, line.TaxAmount.Equal(d("1.00")))
	require.True(t, line.LineTotal.Equal(d("100.99")))
}

func TestComputeLineRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		in   LineInput
		want error
	}{
		{"zero quantity", LineInput{Description: "x", Quantity: d("0"), UnitPrice: d("1"), TaxRate: 20}, ErrValidation},
		{"negative quantity", LineInput{Description: "x", Quantity: d("-1"), UnitPrice: d("1"), TaxRate: 20}, ErrValidation},
		{"negative price", LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("-1"), TaxRate: 20}, ErrValidation},
		{"unknown tax rate", LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1"), TaxRate: 18}, ErrInvalidTaxRate},
		{"missing description", LineInput{Quantity: d("1"), UnitPrice: d("1"), TaxRate: 20}, ErrValidation},
		{"withhold rate above 100", LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1"), TaxRate: 20, WithholdRate: dp("101")}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeLine(tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	lines, totals, err := ComputeTotals([]LineInput{
		{Description: "A", Quantity: d("2"), UnitPrice: d("100.00"), TaxRate: 20},
		{Description: "B", Quantity: d("1"), UnitPrice: d("50.00"), TaxRate: 10},
		{Description: "C", Quantity: d("1"), UnitPrice: d("100.00"), TaxRate: 20, WithholdRate: dp("20")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.True(t, totals.Subtotal.Equal(d("350.00")))
	require.True(t, totals.Tax.Equal(d("65.00")))
	require.True(t, totals.Withhold.Equal(d("20.00")))
	require.True(t, totals.Total.Equal(d("395.00")))
}

func TestComputeTotalsRequiresLines(t *testing.T) {
	_, _, err := ComputeTotals(nil)
	require.ErrorIs(t, err, ErrValidation)
}
