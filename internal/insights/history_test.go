package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthpulse/backend/internal/model"
)

func TestMonthlyHistory(t *testing.T) {
	ctx := context.Background()
	ref := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("empty ledger yields full zero-seeded window", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, ref)

		history, err := engine.MonthlyHistory(ctx, "user-1", 6, ref)
		require.NoError(t, err)
		require.Len(t, history, 6)

		assert.Equal(t, "2025-01", history[0].Period)
		assert.Equal(t, "2025-06", history[5].Period)
		for _, b := range history {
			assert.True(t, b.Income.IsZero(), "period %s income", b.Period)
			assert.True(t, b.Expense.IsZero(), "period %s expense", b.Period)
			assert.True(t, b.Balance.IsZero(), "period %s balance", b.Period)
			assert.Zero(t, b.TransactionCount, "period %s count", b.Period)
		}
	})

	t.Run("aggregates by calendar month and type", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, ref)

		seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 500000, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
		seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 20000, time.Date(2025, 5, 28, 10, 0, 0, 0, time.UTC))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 300000, time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 12550, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))

		history, err := engine.MonthlyHistory(ctx, "user-1", 3, ref)
		require.NoError(t, err)
		require.Len(t, history, 3)

		may := history[1]
		assert.Equal(t, "2025-05", may.Period)
		assert.Equal(t, "5200.00", may.Income.StringFixed(2))
		assert.Equal(t, "3000.00", may.Expense.StringFixed(2))
		assert.Equal(t, "2200.00", may.Balance.StringFixed(2))
		assert.Equal(t, 3, may.TransactionCount)

		june := history[2]
		assert.Equal(t, "2025-06", june.Period)
		assert.Equal(t, "125.50", june.Expense.StringFixed(2))
		assert.Equal(t, "-125.50", june.Balance.StringFixed(2))
	})

	t.Run("transfers count toward volume but not sums", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, ref)

		seedTransaction(t, mem, "user-1", model.TransactionTypeTransfer, 99900, time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC))

		history, err := engine.MonthlyHistory(ctx, "user-1", 1, ref)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Income.IsZero())
		assert.True(t, history[0].Expense.IsZero())
		assert.Equal(t, 1, history[0].TransactionCount)
	})

	t.Run("transactions outside the window are ignored", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, ref)

		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 10000, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 10000, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC))

		history, err := engine.MonthlyHistory(ctx, "user-1", 6, ref)
		require.NoError(t, err)
		assert.Equal(t, 0, populatedMonths(history))
	})

	t.Run("rejects non-positive month count", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, ref)

		_, err := engine.MonthlyHistory(ctx, "user-1", 0, ref)
		require.Error(t, err)
	})
}
