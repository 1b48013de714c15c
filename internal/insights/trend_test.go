package insights

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wealthpulse/backend/internal/model"
)

func TestFitTrend(t *testing.T) {
	t.Run("recovers a perfect linear series", func(t *testing.T) {
		est := fitTrend([]float64{100, 110, 120})

		assert.InDelta(t, 10.0, est.Slope, 1e-9)
		assert.InDelta(t, 100.0, est.Intercept, 1e-9)
		assert.InDelta(t, 130.0, est.NextValue, 1e-9)
	})

	t.Run("flat series projects the constant", func(t *testing.T) {
		est := fitTrend([]float64{250, 250, 250, 250})

		assert.InDelta(t, 0.0, est.Slope, 1e-9)
		assert.InDelta(t, 250.0, est.NextValue, 1e-9)
	})

	t.Run("projection is clamped at zero", func(t *testing.T) {
		est := fitTrend([]float64{300, 200, 100})

		assert.InDelta(t, -100.0, est.Slope, 1e-9)
		assert.Equal(t, 0.0, est.NextValue)
	})

	t.Run("empty series yields zero estimate", func(t *testing.T) {
		assert.Equal(t, model.TrendEstimate{}, fitTrend(nil))
	})

	t.Run("single point has zero slope", func(t *testing.T) {
		est := fitTrend([]float64{42})

		assert.Equal(t, 0.0, est.Slope)
		assert.InDelta(t, 42.0, est.Intercept, 1e-9)
		assert.InDelta(t, 42.0, est.NextValue, 1e-9)
	})
}

func TestGrowthRate(t *testing.T) {
	t.Run("percent change first to last", func(t *testing.T) {
		assert.InDelta(t, 30.0, growthRate([]float64{100, 105, 130}), 1e-9)
	})

	t.Run("zero first value substitutes one", func(t *testing.T) {
		assert.InDelta(t, 4900.0, growthRate([]float64{0, 50}), 1e-9)
	})

	t.Run("short series has no growth", func(t *testing.T) {
		assert.Equal(t, 0.0, growthRate([]float64{100}))
	})
}

func TestAnalyzeTrends(t *testing.T) {
	bucket := func(period string, income, expense int64) model.MonthlyBucket {
		return model.MonthlyBucket{
			Period:  period,
			Income:  decimal.New(income, -2),
			Expense: decimal.New(expense, -2),
		}
	}

	t.Run("fits both series independently", func(t *testing.T) {
		analysis := AnalyzeTrends([]model.MonthlyBucket{
			bucket("2025-01", 500000, 100000),
			bucket("2025-02", 510000, 110000),
			bucket("2025-03", 520000, 120000),
		})

		assert.InDelta(t, 100.0, analysis.Income.Slope, 1e-9)
		assert.InDelta(t, 5300.0, analysis.Income.NextValue, 1e-9)
		assert.InDelta(t, 100.0, analysis.Expense.Slope, 1e-9)
		assert.InDelta(t, 1300.0, analysis.Expense.NextValue, 1e-9)
		assert.InDelta(t, 4.0, analysis.IncomeGrowthPct, 1e-9)
		assert.InDelta(t, 20.0, analysis.ExpenseGrowthPct, 1e-9)
		assert.False(t, analysis.IsExpenseAnomaly)
	})

	t.Run("flags a recent expense spike", func(t *testing.T) {
		analysis := AnalyzeTrends([]model.MonthlyBucket{
			bucket("2025-01", 0, 100000),
			bucket("2025-02", 0, 100000),
			bucket("2025-03", 0, 400000),
		})

		assert.InDelta(t, 2000.0, analysis.AvgExpense, 1e-9)
		assert.True(t, analysis.IsExpenseAnomaly)
	})
}
