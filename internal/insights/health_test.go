package insights

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

func seedBudget(t *testing.T, mem *store.MemoryStore, userID string, active bool) {
	t.Helper()
	err := mem.CreateBudget(context.Background(), &model.Budget{
		ID:                uuid.New().String(),
		UserID:            userID,
		Name:              "groceries",
		MonthlyLimitCents: 150000,
		IsActive:          active,
	})
	require.NoError(t, err)
}

func TestFinancialHealthScore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	monthDate := func(monthsAgo int) time.Time {
		return now.AddDate(0, -monthsAgo, 0)
	}

	t.Run("steady saver without budgets", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		for monthsAgo := 0; monthsAgo < 3; monthsAgo++ {
			seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 500000, monthDate(monthsAgo))
			seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 300000, monthDate(monthsAgo))
		}

		breakdown, err := engine.FinancialHealthScore(ctx, "user-1")
		require.NoError(t, err)

		// 40% savings rate, perfectly consistent expenses, neutral budget score.
		assert.Equal(t, 40, breakdown.SavingsRate.Score)
		assert.InDelta(t, 40.0, breakdown.SavingsRate.Rate, 1e-9)
		assert.Equal(t, 30, breakdown.Consistency.Score)
		assert.InDelta(t, 0.0, breakdown.Consistency.CV, 1e-9)
		assert.Equal(t, 15, breakdown.BudgetHealth.Score)
		assert.Equal(t, 85, breakdown.Score)
		assert.Equal(t, model.HealthLevelDiamante, breakdown.Level)
	})

	t.Run("no activity scores bronze", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, now)

		breakdown, err := engine.FinancialHealthScore(ctx, "user-1")
		require.NoError(t, err)

		assert.Equal(t, 0, breakdown.SavingsRate.Score)
		assert.Equal(t, 30, breakdown.Consistency.Score) // zero expenses vary by nothing
		assert.Equal(t, 15, breakdown.BudgetHealth.Score)
		assert.Equal(t, 45, breakdown.Score)
		assert.Equal(t, model.HealthLevelOuro, breakdown.Level)
	})

	t.Run("overspending with budgets loses discipline points", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedBudget(t, mem, "user-1", true)
		for monthsAgo := 0; monthsAgo < 3; monthsAgo++ {
			seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 300000, monthDate(monthsAgo))
			seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 400000, monthDate(monthsAgo))
		}

		breakdown, err := engine.FinancialHealthScore(ctx, "user-1")
		require.NoError(t, err)

		assert.Equal(t, 0, breakdown.SavingsRate.Score)
		assert.Equal(t, 30, breakdown.Consistency.Score)
		assert.Equal(t, 0, breakdown.BudgetHealth.Score) // three negative months
		assert.Equal(t, 30, breakdown.Score)
		assert.Equal(t, model.HealthLevelPrata, breakdown.Level)
	})

	t.Run("inactive budgets do not count as budgets", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedBudget(t, mem, "user-1", false)
		seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 300000, monthDate(0))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 400000, monthDate(0))

		breakdown, err := engine.FinancialHealthScore(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 15, breakdown.BudgetHealth.Score)
	})

	t.Run("volatile expenses lower consistency", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 100000, monthDate(2))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 200000, monthDate(1))
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 600000, monthDate(0))

		breakdown, err := engine.FinancialHealthScore(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 5, breakdown.Consistency.Score)
		assert.Greater(t, breakdown.Consistency.CV, 0.3)
	})
}
