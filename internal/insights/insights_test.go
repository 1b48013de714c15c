package insights

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
	"github.com/wealthpulse/backend/internal/usage"
)

// testLogger keeps engine log output out of test results.
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newTestEngine wires an Engine over a memory store and the given narrative
// client, with the clock pinned to now.
func newTestEngine(t *testing.T, narrator llm.Client, now time.Time) (*Engine, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	logger := testLogger()
	engine := NewEngine(mem, keys.NewStoreManager(mem, logger), narrator, usage.NewStoreTracker(mem, logger), logger)
	engine.now = func() time.Time { return now }
	return engine, mem
}

// seedTransaction inserts one ledger entry.
func seedTransaction(t *testing.T, mem *store.MemoryStore, userID string, txType model.TransactionType, amountCents int64, date time.Time) *model.Transaction {
	t.Helper()
	tx := &model.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        txType,
		Description: fmt.Sprintf("%s %d", txType, amountCents),
		AmountCents: amountCents,
		Date:        date,
		CreatedAt:   date,
	}
	if err := mem.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

// seedAIConfig configures predictive-analytics credentials for a user.
func seedAIConfig(t *testing.T, mem *store.MemoryStore, userID, apiKey, modelName string) {
	t.Helper()
	err := mem.UpdateAIFeatureConfig(context.Background(), &model.AIFeatureConfig{
		UserID:  userID,
		Feature: keys.FeaturePredictiveAnalytics,
		APIKey:  apiKey,
		Model:   modelName,
	})
	if err != nil {
		t.Fatalf("seed AI config: %v", err)
	}
}
