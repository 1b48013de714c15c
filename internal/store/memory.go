package store

import (
	"context"
	"sort"
	"sync"

	"github.com/wealthpulse/backend/internal/model"
)

// MemoryStore implements the Store interface with in-memory storage.
// It backs local development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	transactions         map[string]*model.Transaction
	forecasts            map[string]*model.ForecastRecord
	anomalies            map[string]*model.AnomalyRecord
	anomalyByTransaction map[string]string // transactionID -> anomalyID
	goals                map[string]*model.Goal
	goalContributions    map[string]*model.GoalContribution
	budgets              map[string]*model.Budget
	aiConfigs            map[string]*model.AIFeatureConfig // userID/feature
	usageEvents          map[string]*model.UsageEvent
	users                map[string]bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:         make(map[string]*model.Transaction),
		forecasts:            make(map[string]*model.ForecastRecord),
		anomalies:            make(map[string]*model.AnomalyRecord),
		anomalyByTransaction: make(map[string]string),
		goals:                make(map[string]*model.Goal),
		goalContributions:    make(map[string]*model.GoalContribution),
		budgets:              make(map[string]*model.Budget),
		aiConfigs:            make(map[string]*model.AIFeatureConfig),
		usageEvents:          make(map[string]*model.UsageEvent),
		users:                make(map[string]bool),
	}
}

// paginateIDs applies cursor-based pagination to a sorted slice of IDs.
// Returns the paginated IDs and the next page token (empty if no more pages).
func paginateIDs(ids []string, pageSize int32, pageToken string) ([]string, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	sort.Strings(ids)

	startIdx := 0
	if pageToken != "" {
		cursor, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		for i, id := range ids {
			if id > cursor {
				startIdx = i
				break
			}
			startIdx = i + 1
		}
	}

	endIdx := startIdx + int(pageSize)
	if endIdx > len(ids) {
		endIdx = len(ids)
	}

	var nextToken string
	if endIdx < len(ids) {
		nextToken = EncodePageToken(ids[endIdx-1])
	}

	return ids[startIdx:endIdx], nextToken, nil
}

// CreateTransaction seeds a ledger entry. The ledger is owned by the CRUD
// subsystems in production; this exists for local dev and tests only.
func (s *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
	s.users[tx.UserID] = true
	return nil
}

// ListTransactions returns a user's transactions matching the filter,
// ordered by date ascending.
func (s *MemoryStore) ListTransactions(ctx context.Context, userID string, filter TransactionFilter, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.StartDate != nil && tx.Date.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && tx.Date.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, tx)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ID < matched[j].ID
	})

	if pageSize <= 0 {
		pageSize = 1000
	}
	startIdx := 0
	if pageToken != "" {
		cursor, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		for i, tx := range matched {
			if tx.ID == cursor {
				startIdx = i + 1
				break
			}
		}
	}
	endIdx := startIdx + int(pageSize)
	if endIdx > len(matched) {
		endIdx = len(matched)
	}
	var nextToken string
	if endIdx < len(matched) {
		nextToken = EncodePageToken(matched[endIdx-1].ID)
	}
	return matched[startIdx:endIdx], nextToken, nil
}

// CreateForecast persists a forecast record.
func (s *MemoryStore) CreateForecast(ctx context.Context, forecast *model.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *forecast
	s.forecasts[forecast.ID] = &cp
	return nil
}

// ListForecasts returns a user's forecast records, optionally filtered by
// prediction type.
func (s *MemoryStore) ListForecasts(ctx context.Context, userID, predictionType string, pageSize int32, pageToken string) ([]*model.ForecastRecord, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, f := range s.forecasts {
		if f.UserID != userID {
			continue
		}
		if predictionType != "" && f.PredictionType != predictionType {
			continue
		}
		ids = append(ids, id)
	}

	pageIDs, nextToken, err := paginateIDs(ids, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}
	forecasts := make([]*model.ForecastRecord, 0, len(pageIDs))
	for _, id := range pageIDs {
		cp := *s.forecasts[id]
		forecasts = append(forecasts, &cp)
	}
	return forecasts, nextToken, nil
}

// CreateAnomaly persists an anomaly record. Returns ErrAlreadyExists when a
// record for the same transaction is already present.
func (s *MemoryStore) CreateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.anomalyByTransaction[anomaly.TransactionID]; exists {
		return ErrAlreadyExists
	}
	cp := *anomaly
	s.anomalies[anomaly.ID] = &cp
	s.anomalyByTransaction[anomaly.TransactionID] = anomaly.ID
	return nil
}

// GetAnomalyByTransaction returns the anomaly record for a transaction, or
// ErrNotFound.
func (s *MemoryStore) GetAnomalyByTransaction(ctx context.Context, userID, transactionID string) (*model.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.anomalyByTransaction[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	a := s.anomalies[id]
	if a == nil || a.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// severityRank orders severities for minimum-severity filtering.
func severityRank(sev model.AnomalySeverity) int {
	switch sev {
	case model.AnomalySeverityCritical:
		return 2
	case model.AnomalySeverityHigh:
		return 1
	default:
		return 0
	}
}

// ListAnomalies returns a user's anomaly records matching the filter.
func (s *MemoryStore) ListAnomalies(ctx context.Context, userID string, filter AnomalyFilter, pageSize int32, pageToken string) ([]*model.AnomalyRecord, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	minRank := severityRank(filter.MinSeverity)
	var ids []string
	for id, a := range s.anomalies {
		if a.UserID != userID {
			continue
		}
		if !filter.IncludeDismissed && a.Dismissed {
			continue
		}
		if severityRank(a.Severity) < minRank {
			continue
		}
		if a.Score < filter.MinScore {
			continue
		}
		ids = append(ids, id)
	}

	pageIDs, nextToken, err := paginateIDs(ids, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}
	anomalies := make([]*model.AnomalyRecord, 0, len(pageIDs))
	for _, id := range pageIDs {
		cp := *s.anomalies[id]
		anomalies = append(anomalies, &cp)
	}
	return anomalies, nextToken, nil
}

// UpdateAnomaly replaces an existing anomaly record.
func (s *MemoryStore) UpdateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.anomalies[anomaly.ID]; !ok {
		return ErrNotFound
	}
	cp := *anomaly
	s.anomalies[anomaly.ID] = &cp
	return nil
}

// CreateGoal seeds a goal. Local dev and tests only.
func (s *MemoryStore) CreateGoal(ctx context.Context, goal *model.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[goal.ID] = goal
	s.users[goal.UserID] = true
	return nil
}

// GetGoal returns a goal by id, or ErrNotFound.
func (s *MemoryStore) GetGoal(ctx context.Context, goalID string) (*model.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[goalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

// CreateGoalContribution seeds a goal contribution. Local dev and tests only.
func (s *MemoryStore) CreateGoalContribution(ctx context.Context, contribution *model.GoalContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalContributions[contribution.ID] = contribution
	return nil
}

// ListGoalContributions returns a goal's contributions, most recent first,
// capped at limit.
func (s *MemoryStore) ListGoalContributions(ctx context.Context, goalID string, limit int32) ([]*model.GoalContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.GoalContribution
	for _, c := range s.goalContributions {
		if c.GoalID == goalID {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID < matched[j].ID
	})
	if limit > 0 && int(limit) < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// CreateBudget seeds a budget. Local dev and tests only.
func (s *MemoryStore) CreateBudget(ctx context.Context, budget *model.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budget.ID] = budget
	s.users[budget.UserID] = true
	return nil
}

// ListBudgets returns a user's budgets, active only unless includeInactive.
func (s *MemoryStore) ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]*model.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Budget
	for _, b := range s.budgets {
		if b.UserID != userID {
			continue
		}
		if !includeInactive && !b.IsActive {
			continue
		}
		cp := *b
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func aiConfigKey(userID, feature string) string {
	return userID + "/" + feature
}

// GetAIFeatureConfig returns a user's config for one AI feature, or ErrNotFound.
func (s *MemoryStore) GetAIFeatureConfig(ctx context.Context, userID, feature string) (*model.AIFeatureConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.aiConfigs[aiConfigKey(userID, feature)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

// UpdateAIFeatureConfig upserts a user's AI feature config.
func (s *MemoryStore) UpdateAIFeatureConfig(ctx context.Context, config *model.AIFeatureConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *config
	s.aiConfigs[aiConfigKey(config.UserID, config.Feature)] = &cp
	s.users[config.UserID] = true
	return nil
}

// CreateUsageEvent persists a usage event.
func (s *MemoryStore) CreateUsageEvent(ctx context.Context, event *model.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.usageEvents[event.ID] = &cp
	return nil
}

// ListUsageEvents returns all usage events for a user. Tests only.
func (s *MemoryStore) ListUsageEvents(ctx context.Context, userID string) ([]*model.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*model.UsageEvent
	for _, e := range s.usageEvents {
		if e.UserID == userID {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return matched, nil
}

// ListUserIDs returns every user id seen by the store, sorted.
func (s *MemoryStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ Store = (*MemoryStore)(nil)
