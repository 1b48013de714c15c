package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

const ledgerPageSize = 1000

// MonthlyHistory aggregates the user's ledger into exactly `months`
// consecutive calendar-month buckets ending with the reference date's month.
// Buckets are zero-seeded before the ledger is read, so sparse or empty data
// still yields a full, gap-free series for the regression and the scorer.
//
// Only INCOME and EXPENSE contribute to the sums. Transfers and any type
// added later still count toward TransactionCount so the volume signal stays
// honest, but they never move the totals.
func (e *Engine) MonthlyHistory(ctx context.Context, userID string, months int, ref time.Time) ([]model.MonthlyBucket, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}
	ref = ref.UTC()

	currentMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	windowStart := currentMonth.AddDate(0, -(months - 1), 0)
	windowEnd := currentMonth.AddDate(0, 1, 0).Add(-time.Second)

	buckets := make([]model.MonthlyBucket, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		period := windowStart.AddDate(0, i, 0).Format("2006-01")
		buckets[i] = model.MonthlyBucket{
			Period:  period,
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Balance: decimal.Zero,
		}
		index[period] = i
	}

	pageToken := ""
	for {
		txs, nextToken, err := e.store.ListTransactions(ctx, userID, store.TransactionFilter{
			StartDate: &windowStart,
			EndDate:   &windowEnd,
		}, ledgerPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}

		for _, tx := range txs {
			i, ok := index[tx.Date.UTC().Format("2006-01")]
			if !ok {
				continue
			}
			bucket := &buckets[i]
			switch tx.Type {
			case model.TransactionTypeIncome:
				bucket.Income = bucket.Income.Add(tx.Amount())
			case model.TransactionTypeExpense:
				bucket.Expense = bucket.Expense.Add(tx.Amount())
			}
			bucket.TransactionCount++
		}

		if nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	for i := range buckets {
		buckets[i].Balance = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets, nil
}

// populatedMonths counts buckets that saw at least one transaction.
func populatedMonths(history []model.MonthlyBucket) int {
	count := 0
	for _, b := range history {
		if b.TransactionCount > 0 {
			count++
		}
	}
	return count
}
