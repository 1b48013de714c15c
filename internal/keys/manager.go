// Package keys resolves per-user AI credentials and enforces token quotas.
package keys

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/store"
)

// FeaturePredictiveAnalytics is the feature name the forecast and anomaly
// paths resolve credentials under.
const FeaturePredictiveAnalytics = "predictive_analytics"

// Errors returned by credential resolution. Both are terminal for the call
// that triggered them: the engine does not degrade when it cannot reach the
// narrative provider at all.
var (
	ErrNotConfigured = errors.New("keys: AI feature is not configured for user")
	ErrQuotaExceeded = errors.New("keys: monthly token quota exceeded")
)

// Resolution is the credential set for one narrative-provider call.
type Resolution struct {
	APIKey   string
	Provider string
	Model    string
}

// Manager is the credential/key-manager collaborator contract.
type Manager interface {
	ResolveKey(ctx context.Context, userID, feature string) (*Resolution, error)
}

// StoreManager resolves credentials from the persistence store.
type StoreManager struct {
	store  store.Store
	logger *logrus.Entry
	now    func() time.Time
}

// NewStoreManager creates a store-backed key manager.
func NewStoreManager(st store.Store, logger *logrus.Logger) *StoreManager {
	return &StoreManager{
		store:  st,
		logger: logger.WithField("component", "keys"),
		now:    time.Now,
	}
}

// ResolveKey returns the API key, provider and model configured for the
// user+feature pair. Fails with ErrNotConfigured when no usable config
// exists and ErrQuotaExceeded when the monthly token budget is spent.
// The quota check happens here, synchronously, before any narrative call.
func (m *StoreManager) ResolveKey(ctx context.Context, userID, feature string) (*Resolution, error) {
	cfg, err := m.store.GetAIFeatureConfig(ctx, userID, feature)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotConfigured, "user %s feature %s", userID, feature)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI feature config")
	}
	if cfg.APIKey == "" {
		return nil, errors.Wrapf(ErrNotConfigured, "user %s feature %s has no API key", userID, feature)
	}

	if cfg.MonthlyTokenLimit > 0 && !m.quotaReset(cfg.PeriodStart) && cfg.TokensUsed >= cfg.MonthlyTokenLimit {
		m.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"feature": feature,
			"used":    cfg.TokensUsed,
			"limit":   cfg.MonthlyTokenLimit,
		}).Warn("token quota exhausted")
		return nil, errors.Wrapf(ErrQuotaExceeded, "user %s feature %s", userID, feature)
	}

	return &Resolution{
		APIKey:   cfg.APIKey,
		Provider: cfg.Provider,
		Model:    cfg.Model,
	}, nil
}

// quotaReset reports whether the recorded usage period predates the current
// calendar month, in which case the counter no longer applies.
func (m *StoreManager) quotaReset(periodStart time.Time) bool {
	now := m.now().UTC()
	return periodStart.UTC().Year() != now.Year() || periodStart.UTC().Month() != now.Month()
}
