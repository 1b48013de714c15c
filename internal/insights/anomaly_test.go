package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

// seedExpenseBaseline inserts twelve expenses in the trailing window with
// mean 200.00 and population standard deviation 50.00.
func seedExpenseBaseline(t *testing.T, mem *store.MemoryStore, userID string, now time.Time) {
	t.Helper()
	for i := 0; i < 6; i++ {
		seedTransaction(t, mem, userID, model.TransactionTypeExpense, 15000, now.AddDate(0, 0, -(i*2+10)))
		seedTransaction(t, mem, userID, model.TransactionTypeExpense, 25000, now.AddDate(0, 0, -(i*2+11)))
	}
}

func TestDetectAnomalies(t *testing.T) {
	ctx := context.Background()
	// Midnight clock: the day's own transactions sit outside the baseline
	// window but inside the detection window.
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	day := now

	txTime := time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

	t.Run("within bounds is not flagged", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 30000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("high outlier", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		tx := seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 40000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		require.Len(t, records, 1)

		record := records[0]
		assert.Equal(t, tx.ID, record.TransactionID)
		assert.Equal(t, AnomalyTypeAmountOutlier, record.Type)
		assert.Equal(t, model.AnomalySeverityHigh, record.Severity)
		assert.InDelta(t, 0.4, record.Score, 1e-9)
		assert.Equal(t, int64(20000), record.ExpectedValueCents)
		assert.Equal(t, int64(40000), record.ActualValueCents)
		assert.InDelta(t, 100.0, record.DeviationPct, 1e-9)
		assert.InDelta(t, 200.0, record.HistoricalAverage, 1e-9)
		assert.InDelta(t, 50.0, record.HistoricalStdDev, 1e-9)

		// No AI credentials configured: the placeholder classification applies.
		assert.Equal(t, "UNKNOWN", record.RiskLevel)
		assert.Equal(t, "REVIEW", record.Action)
	})

	t.Run("critical outlier", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 60000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, model.AnomalySeverityCritical, records[0].Severity)
		assert.InDelta(t, 0.8, records[0].Score, 1e-9)
	})

	t.Run("income is never evaluated", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedTransaction(t, mem, "user-1", model.TransactionTypeIncome, 5000000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("repeat runs are idempotent", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 60000, txTime)

		first, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		assert.Empty(t, second)

		all, _, err := mem.ListAnomalies(ctx, "user-1", store.AnomalyFilter{}, 50, "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("too few baseline samples skips detection", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		for i := 0; i < 5; i++ {
			seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 20000, now.AddDate(0, 0, -(i+10)))
		}
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 90000000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("constant spending skips detection", func(t *testing.T) {
		engine, mem := newTestEngine(t, nil, now)
		for i := 0; i < 12; i++ {
			seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 20000, now.AddDate(0, 0, -(i+10)))
		}
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 90000000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("narrative classification enriches the record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		narrator := llm.NewMockClient(ctrl)
		narrator.EXPECT().
			Complete(gomock.Any(), llm.Credentials{APIKey: "key", Model: "gemini-2.0-flash"}, gomock.Any()).
			Return(&llm.Completion{
				Content: `{"analysis": "A single purchase far above the usual range.", "riskLevel": "HIGH", "action": "ALERT"}`,
				Usage:   llm.TokenUsage{PromptTokens: 200, CompletionTokens: 40, TotalTokens: 240},
			}, nil)

		engine, mem := newTestEngine(t, narrator, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedAIConfig(t, mem, "user-1", "key", "gemini-2.0-flash")
		tx := seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 60000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		require.Len(t, records, 1)

		assert.Equal(t, "A single purchase far above the usual range.", records[0].Analysis)
		assert.Equal(t, "HIGH", records[0].RiskLevel)
		assert.Equal(t, "ALERT", records[0].Action)

		events, err := mem.ListUsageEvents(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, tx.ID, events[0].RelatedID)
	})

	t.Run("classification failure still persists the record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		narrator := llm.NewMockClient(ctrl)
		narrator.EXPECT().
			Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &llm.ProviderError{Code: llm.ErrProviderRateLimited, Message: "slow down", Retryable: true})

		engine, mem := newTestEngine(t, narrator, now)
		seedExpenseBaseline(t, mem, "user-1", now)
		seedAIConfig(t, mem, "user-1", "key", "gemini-2.0-flash")
		seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 60000, txTime)

		records, err := engine.DetectAnomalies(ctx, "user-1", day)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "UNKNOWN", records[0].RiskLevel)
		assert.Equal(t, "REVIEW", records[0].Action)
	})
}

func TestDismissAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	txTime := time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

	engine, mem := newTestEngine(t, nil, now)
	seedExpenseBaseline(t, mem, "user-1", now)
	tx := seedTransaction(t, mem, "user-1", model.TransactionTypeExpense, 60000, txTime)

	records, err := engine.DetectAnomalies(ctx, "user-1", now)
	require.NoError(t, err)
	require.Len(t, records, 1)

	t.Run("dismissal hides the record from default listings", func(t *testing.T) {
		dismissed, err := engine.DismissAnomaly(ctx, "user-1", tx.ID)
		require.NoError(t, err)
		assert.True(t, dismissed.Dismissed)
		require.NotNil(t, dismissed.DismissedAt)

		visible, _, err := engine.ListAnomalies(ctx, "user-1", store.AnomalyFilter{}, 50, "")
		require.NoError(t, err)
		assert.Empty(t, visible)

		all, _, err := engine.ListAnomalies(ctx, "user-1", store.AnomalyFilter{IncludeDismissed: true}, 50, "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("dismissal is idempotent", func(t *testing.T) {
		first, err := engine.DismissAnomaly(ctx, "user-1", tx.ID)
		require.NoError(t, err)
		again, err := engine.DismissAnomaly(ctx, "user-1", tx.ID)
		require.NoError(t, err)
		assert.Equal(t, first.DismissedAt, again.DismissedAt)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := engine.DismissAnomaly(ctx, "user-1", "no-such-tx")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDetectForAllUsers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	txTime := time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

	engine, mem := newTestEngine(t, nil, now)

	// user-a has a baseline and an outlier; user-b has too little history.
	seedExpenseBaseline(t, mem, "user-a", now)
	seedTransaction(t, mem, "user-a", model.TransactionTypeExpense, 60000, txTime)
	seedTransaction(t, mem, "user-b", model.TransactionTypeExpense, 5000, txTime)

	result, err := engine.DetectForAllUsers(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersProcessed)
	assert.Equal(t, 0, result.UsersFailed)
	assert.Equal(t, 1, result.AnomaliesCreated)
}
