package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validDraft() DraftInput {
	return DraftInput{
		Number: "JE-2025-001",
		Date:   time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: 1, Debit: d("118.00")},
			{AccountID: 2, Credit: d("100.00")},
			{AccountID: 3, Credit: d("18.00")},
		},
	}
}

func TestDraftInputValidate(t *testing.T) {
	t.Run("balanced draft passes", func(t *testing.T) {
		require.NoError(t, validDraft().Validate())
	})

	t.Run("missing number", func(t *testing.T) {
		in := validDraft()
		in.Number = "  "
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("missing date", func(t *testing.T) {
		in := validDraft()
		in.Date = time.Time{}
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("no lines", func(t *testing.T) {
		in := validDraft()
		in.Lines = nil
		require.ErrorIs(t, in.Validate(), ErrEmptyEntry)
	})

	t.Run("unbalanced", func(t *testing.T) {
		in := validDraft()
		in.Lines[0].Debit = d("118.01")
		require.ErrorIs(t, in.Validate(), ErrUnbalanced)
	})

	t.Run("line with both sides set", func(t *testing.T) {
		in := validDraft()
		in.Lines[0].Credit = d("1.00")
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("line with neither side set", func(t *testing.T) {
		in := validDraft()
		in.Lines = append(in.Lines, LineInput{AccountID: 9})
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("negative amount", func(t *testing.T) {
		in := validDraft()
		in.Lines[0].Debit = d("-118.00")
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("more than two decimal places", func(t *testing.T) {
		in := validDraft()
		in.Lines[0].Debit = d("118.001")
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	t.Run("missing account", func(t *testing.T) {
		in := validDraft()
		in.Lines[0].AccountID = 0
		require.ErrorIs(t, in.Validate(), ErrValidation)
	})

	// 0.1 + 0.2 must equal 0.3 exactly; float arithmetic would reject
	// this balanced entry.
	t.Run("exact decimal balance", func(t *testing.T) {
		in := DraftInput{
			Number: "JE-2025-002",
			Date:   time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			Lines: []LineInput{
				{AccountID: 1, Debit: d("0.1")},
				{AccountID: 1, Debit: d("0.2")},
				{AccountID: 2, Credit: d("0.3")},
			},
		}
		require.NoError(t, in.Validate())
	})
}

func TestSumLines(t *testing.T) {
	debit, credit := SumLines(validDraft().Lines)
	require.True(t, debit.Equal(d("118.00")))
	require.True(t, credit.Equal(d("118.00")))
}

func TestReversedLines(t *testing.T) {
	contact := int64(7)
	lines := []JournalLine{
		{AccountID: 1, Debit: d("50.00"), Description: "cash"},
		{AccountID: 2, Credit: d("50.00"), ContactID: &contact},
	}
	reversed := ReversedLines(lines)
	require.Len(t, reversed, 2)
	require.True(t, reversed[0].Credit.Equal(d("50.00")))
	require.True(t, reversed[0].Debit.IsZero())
	require.True(t, reversed[1].Debit.Equal(d("50.00")))
	require.Equal(t, &contact, reversed[1].ContactID)
}

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2025, time.January, 31, 23, 0, 0, 0, time.UTC))
	require.Equal(t, Period{Year: 2025, Month: time.January}, p)
	require.Equal(t, "2025-01", p.String())
}
