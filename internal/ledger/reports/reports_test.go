package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{AccountID: 1, Code: "100", Name: "Kasa", Type: "ASSET", Debit: d("500.00"), Credit: d("120.00")},
		{AccountID: 2, Code: "320", Name: "Satıcılar", Type: "LIABILITY", Debit: d("20.00"), Credit: d("400.00")},
	}
	tb := BuildTrialBalance(balances)
	require.Len(t, tb.Rows, 2)

	require.True(t, tb.Rows[0].DebitBalance.Equal(d("380.00")))
	require.True(t, tb.Rows[0].CreditBalance.IsZero())
	require.Equal(t, "100", tb.Rows[0].Group)
	require.True(t, tb.Rows[1].CreditBalance.Equal(d("380.00")))
	require.True(t, tb.Rows[1].DebitBalance.IsZero())

	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
}

func TestBuildTrialBalanceNetsToSide(t *testing.T) {
	// An asset account overdrawn into a credit position shows on the
	// credit side, not as a negative debit.
	tb := BuildTrialBalance([]AccountBalance{
		{Code: "100", Name: "Kasa", Debit: d("100.00"), Credit: d("150.00")},
	})
	require.True(t, tb.Rows[0].DebitBalance.IsZero())
	require.True(t, tb.Rows[0].CreditBalance.Equal(d("50.00")))
}

func TestAccountBalanceGroupKey(t *testing.T) {
	require.Equal(t, "120", AccountBalance{Code: "120.01"}.GroupKey())
	require.Equal(t, "600", AccountBalance{Code: "600"}.GroupKey())
}

func TestRunningBalance(t *testing.T) {
	movements := []Movement{
		{EntryNumber: "JE-1", Debit: d("100.00")},
		{EntryNumber: "JE-2", Credit: d("30.00")},
		{EntryNumber: "JE-3", Debit: d("0.50")},
	}
	rows := CollectLedger(d("10.00"), movements)
	require.Len(t, rows, 3)
	require.True(t, rows[0].Balance.Equal(d("110.00")))
	require.True(t, rows[1].Balance.Equal(d("80.00")))
	require.True(t, rows[2].Balance.Equal(d("80.50")))
}

func TestRunningBalanceIsRestartable(t *testing.T) {
	seq := RunningBalance(decimal.Zero, []Movement{
		{Debit: d("1.00")},
		{Debit: d("2.00")},
	})
	for range 2 {
		var last decimal.Decimal
		for row := range seq {
			last = row.Balance
		}
		require.True(t, last.Equal(d("3.00")))
	}
}

func TestRunningBalanceStopsEarly(t *testing.T) {
	seq := RunningBalance(decimal.Zero, []Movement{
		{Debit: d("1.00")},
		{Debit: d("2.00")},
		{Debit: d("3.00")},
	})
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestCacheRoundTripAndInvalidate(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()
	asOf := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	_, ok := cache.GetTrialBalance(ctx, asOf)
	require.False(t, ok)

	tb := BuildTrialBalance([]AccountBalance{
		{Code: "100", Name: "Kasa", Debit: d("75.00")},
	})
	cache.SetTrialBalance(ctx, asOf, tb)

	got, ok := cache.GetTrialBalance(ctx, asOf)
	require.True(t, ok)
	require.Len(t, got.Rows, 1)
	require.True(t, got.TotalDebit.Equal(d("75.00")))

	require.NoError(t, cache.Invalidate(ctx))
	_, ok = cache.GetTrialBalance(ctx, asOf)
	require.False(t, ok)
}

func TestNilCacheIsDisabled(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Invalidate(ctx))
	_, ok := cache.GetTrialBalance(ctx, time.Now())
	require.False(t, ok)
}
