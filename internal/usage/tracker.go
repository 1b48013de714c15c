// Package usage records token consumption for narrative-provider calls.
// Tracking is strictly best-effort: a failed write must never affect the
// operation that produced the tokens.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

// Tracker is the usage-tracking collaborator contract. Track never returns
// an error.
type Tracker interface {
	Track(ctx context.Context, userID, feature string, tokens llm.TokenUsage, modelName, relatedID string)
}

// StoreTracker persists usage events and maintains the per-feature monthly
// token counter the quota check reads.
type StoreTracker struct {
	store  store.Store
	logger *logrus.Entry
	now    func() time.Time
}

// NewStoreTracker creates a store-backed usage tracker.
func NewStoreTracker(st store.Store, logger *logrus.Logger) *StoreTracker {
	return &StoreTracker{
		store:  st,
		logger: logger.WithField("component", "usage"),
		now:    time.Now,
	}
}

// Track records one completion's token usage. Failures are logged and
// swallowed.
func (t *StoreTracker) Track(ctx context.Context, userID, feature string, tokens llm.TokenUsage, modelName, relatedID string) {
	now := t.now().UTC()
	event := &model.UsageEvent{
		ID:               uuid.New().String(),
		UserID:           userID,
		Feature:          feature,
		PromptTokens:     tokens.PromptTokens,
		CompletionTokens: tokens.CompletionTokens,
		TotalTokens:      tokens.TotalTokens,
		Model:            modelName,
		RelatedID:        relatedID,
		CreatedAt:        now,
	}
	if err := t.store.CreateUsageEvent(ctx, event); err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to persist usage event")
		return
	}

	t.bumpCounter(ctx, userID, feature, int64(tokens.TotalTokens), now)
}

// bumpCounter advances the monthly token counter on the feature config,
// resetting it when the calendar month rolled over. Read-modify-write is
// acceptable here: the counter is advisory and feeds a coarse quota check.
func (t *StoreTracker) bumpCounter(ctx context.Context, userID, feature string, total int64, now time.Time) {
	cfg, err := t.store.GetAIFeatureConfig(ctx, userID, feature)
	if err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to load feature config for counter update")
		return
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if cfg.PeriodStart.Before(monthStart) {
		cfg.PeriodStart = monthStart
		cfg.TokensUsed = 0
	}
	cfg.TokensUsed += total

	if err := t.store.UpdateAIFeatureConfig(ctx, cfg); err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to update token counter")
	}
}
