package insights

import (
	"github.com/wealthpulse/backend/internal/model"
)

// expenseSpikeRatio flags a trend-level expense anomaly when the most recent
// month exceeds this multiple of the window average. Coarse by design: the
// transaction-level z-score detector handles individual outliers.
const expenseSpikeRatio = 1.5

// fitTrend fits ordinary least squares over x = 0..n-1 and projects the next
// period. The projection is clamped to zero: neither income nor expense is
// ever forecast negative.
func fitTrend(series []float64) model.TrendEstimate {
	n := float64(len(series))
	if n == 0 {
		return model.TrendEstimate{}
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	var slope float64
	denom := n*sumX2 - sumX*sumX
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / n

	next := slope*n + intercept
	if next < 0 {
		next = 0
	}
	return model.TrendEstimate{
		Slope:     slope,
		Intercept: intercept,
		NextValue: next,
	}
}

// growthRate returns the percent change from the first to the last value.
// A zero first value is substituted with 1 to avoid division by zero; this
// matches the behavior consumers already depend on.
func growthRate(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	first := series[0]
	last := series[len(series)-1]
	if first == 0 {
		first = 1
	}
	return (last - first) / first * 100
}

// AnalyzeTrends fits independent income and expense trends over a history
// window and evaluates the coarse expense-spike heuristic.
func AnalyzeTrends(history []model.MonthlyBucket) *model.TrendAnalysis {
	incomes := make([]float64, len(history))
	expenses := make([]float64, len(history))
	for i, b := range history {
		incomes[i] = b.Income.InexactFloat64()
		expenses[i] = b.Expense.InexactFloat64()
	}

	var avgExpense float64
	for _, v := range expenses {
		avgExpense += v
	}
	if len(expenses) > 0 {
		avgExpense /= float64(len(expenses))
	}

	spike := false
	if len(expenses) > 0 && avgExpense > 0 {
		spike = expenses[len(expenses)-1] > expenseSpikeRatio*avgExpense
	}

	return &model.TrendAnalysis{
		Income:           fitTrend(incomes),
		Expense:          fitTrend(expenses),
		AvgExpense:       avgExpense,
		IsExpenseAnomaly: spike,
		IncomeGrowthPct:  growthRate(incomes),
		ExpenseGrowthPct: growthRate(expenses),
	}
}
