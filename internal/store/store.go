package store

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/wealthpulse/backend/internal/model"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// TransactionFilter narrows a ledger read.
type TransactionFilter struct {
	Type      model.TransactionType // empty matches all types
	StartDate *time.Time
	EndDate   *time.Time
}

// AnomalyFilter narrows an anomaly listing. Dismissed records are excluded
// unless IncludeDismissed is set.
type AnomalyFilter struct {
	MinSeverity      model.AnomalySeverity // empty matches any severity
	MinScore         float64
	IncludeDismissed bool
}

// Store defines the persistence operations the analytics engine depends on.
// The transaction ledger, goals and budgets are owned by other subsystems;
// the engine only reads them. Forecast and anomaly records are owned here.
type Store interface {
	// Ledger reads
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter, pageSize int32, pageToken string) ([]*model.Transaction, string, error)

	// Forecast records
	CreateForecast(ctx context.Context, forecast *model.ForecastRecord) error
	ListForecasts(ctx context.Context, userID, predictionType string, pageSize int32, pageToken string) ([]*model.ForecastRecord, string, error)

	// Anomaly records. CreateAnomaly returns ErrAlreadyExists when a record
	// for the same transaction is already persisted, which makes detection
	// idempotent even across concurrent runs.
	CreateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error
	GetAnomalyByTransaction(ctx context.Context, userID, transactionID string) (*model.AnomalyRecord, error)
	ListAnomalies(ctx context.Context, userID string, filter AnomalyFilter, pageSize int32, pageToken string) ([]*model.AnomalyRecord, string, error)
	UpdateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error

	// Goal reads
	GetGoal(ctx context.Context, goalID string) (*model.Goal, error)
	ListGoalContributions(ctx context.Context, goalID string, limit int32) ([]*model.GoalContribution, error)

	// Budget reads
	ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]*model.Budget, error)

	// AI feature configuration (credentials + quota counters)
	GetAIFeatureConfig(ctx context.Context, userID, feature string) (*model.AIFeatureConfig, error)
	UpdateAIFeatureConfig(ctx context.Context, config *model.AIFeatureConfig) error

	// Usage events
	CreateUsageEvent(ctx context.Context, event *model.UsageEvent) error

	// Batch support: every user id known to the system, for scheduled sweeps.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
