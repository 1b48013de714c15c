package insights

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/wealthpulse/backend/internal/model"
)

const healthHistoryMonths = 3

// FinancialHealthScore computes the bounded composite score from savings
// rate (0-40), expense consistency (0-30) and budget discipline (0-30) over
// the trailing three months, returning the full breakdown.
func (e *Engine) FinancialHealthScore(ctx context.Context, userID string) (*model.HealthScoreBreakdown, error) {
	history, err := e.MonthlyHistory(ctx, userID, healthHistoryMonths, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate history: %w", err)
	}

	savings := savingsRateScore(history)
	consistency := consistencyScore(history)

	budgets, err := e.store.ListBudgets(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	budget := budgetHealthScore(history, len(budgets) > 0)

	total := savings.Score + consistency.Score + budget.Score
	return &model.HealthScoreBreakdown{
		SavingsRate:  savings,
		Consistency:  consistency,
		BudgetHealth: budget,
		Score:        total,
		Level:        healthLevel(total),
	}, nil
}

// savingsRateScore maps the window's savings rate onto the 0-40 tier.
func savingsRateScore(history []model.MonthlyBucket) model.SavingsRateScore {
	totalIncome := decimal.Zero
	totalExpense := decimal.Zero
	for _, b := range history {
		totalIncome = totalIncome.Add(b.Income)
		totalExpense = totalExpense.Add(b.Expense)
	}

	rate := 0.0
	if totalIncome.IsPositive() {
		rate = totalIncome.Sub(totalExpense).
			Div(totalIncome).
			Mul(decimal.NewFromInt(100)).
			InexactFloat64()
	}

	score := 0
	switch {
	case rate >= 20:
		score = 40
	case rate >= 10:
		score = 30
	case rate >= 5:
		score = 15
	case rate > 0:
		score = 5
	}
	return model.SavingsRateScore{Score: score, Max: 40, Rate: rate}
}

// consistencyScore maps the coefficient of variation of monthly expenses
// onto the 0-30 tier. An all-zero expense window has no variation and takes
// the top tier.
func consistencyScore(history []model.MonthlyBucket) model.ConsistencyScore {
	expenses := make([]float64, len(history))
	var mean float64
	for i, b := range history {
		expenses[i] = b.Expense.InexactFloat64()
		mean += expenses[i]
	}
	if len(expenses) > 0 {
		mean /= float64(len(expenses))
	}

	cv := 0.0
	if mean > 0 {
		var varianceSum float64
		for _, v := range expenses {
			diff := v - mean
			varianceSum += diff * diff
		}
		cv = math.Sqrt(varianceSum/float64(len(expenses))) / mean
	}

	score := 5
	switch {
	case cv < 0.1:
		score = 30
	case cv < 0.2:
		score = 20
	case cv < 0.3:
		score = 10
	}
	return model.ConsistencyScore{Score: score, Max: 30, CV: cv}
}

// budgetHealthScore starts at 30 and loses 10 per month with a negative
// balance, floored at zero. Users without active budgets take a neutral 15:
// no discipline signal exists either way.
func budgetHealthScore(history []model.MonthlyBucket, hasBudgets bool) model.BudgetHealthScore {
	if !hasBudgets {
		return model.BudgetHealthScore{Score: 15, Max: 30}
	}

	score := 30
	for _, b := range history {
		if b.Balance.IsNegative() {
			score -= 10
		}
	}
	if score < 0 {
		score = 0
	}
	return model.BudgetHealthScore{Score: score, Max: 30}
}

func healthLevel(score int) model.HealthLevel {
	switch {
	case score >= 80:
		return model.HealthLevelDiamante
	case score >= 60:
		return model.HealthLevelPlatina
	case score >= 40:
		return model.HealthLevelOuro
	case score >= 20:
		return model.HealthLevelPrata
	default:
		return model.HealthLevelBronze
	}
}
