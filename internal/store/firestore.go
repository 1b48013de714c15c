package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wealthpulse/backend/internal/model"
)

// FirestoreStore implements the Store interface using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

// applyDateAwarePagination handles pagination for queries with date range filters.
// Firestore requires OrderBy on inequality fields first, so we use OrderBy("Date") + OrderBy(__name__).
// The cursor must include both the Date value and the document ID.
func (s *FirestoreStore) applyDateAwarePagination(ctx context.Context, query firestore.Query, collection string, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy("Date", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.client.Collection(collection).Doc(docID).Get(ctx)
		if err != nil {
			return query, fmt.Errorf("failed to fetch cursor document: %w", err)
		}
		dateVal := cursorDoc.Data()["Date"]
		query = query.StartAfter(dateVal, docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1)
	return query, nil
}

// applyCursorPagination adds OrderBy + StartAfter + Limit to a query for
// cursor-based pagination. It fetches pageSize+1 docs so the caller can
// detect whether a next page exists.
func (s *FirestoreStore) applyCursorPagination(query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1)
	return query, nil
}

// ListTransactions lists a user's ledger entries matching the filter.
// NOTE: Field names must match Go struct field names (PascalCase) as that's
// how Firestore serializes the structs.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, filter TransactionFilter, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	query := s.client.Collection("transactions").Query.
		Where("UserID", "==", userID)

	if filter.Type != "" {
		query = query.Where("Type", "==", string(filter.Type))
	}
	if filter.StartDate != nil {
		query = query.Where("Date", ">=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("Date", "<=", *filter.EndDate)
	}

	query, err := s.applyDateAwarePagination(ctx, query, "transactions", pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list transactions: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	transactions := make([]*model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, "", fmt.Errorf("failed to parse transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nextPageToken, nil
}

// CreateForecast persists a forecast record.
func (s *FirestoreStore) CreateForecast(ctx context.Context, forecast *model.ForecastRecord) error {
	_, err := s.client.Collection("forecasts").Doc(forecast.ID).Set(ctx, forecast)
	return err
}

// ListForecasts lists a user's forecast records.
func (s *FirestoreStore) ListForecasts(ctx context.Context, userID, predictionType string, pageSize int32, pageToken string) ([]*model.ForecastRecord, string, error) {
	query := s.client.Collection("forecasts").Query.
		Where("UserID", "==", userID)
	if predictionType != "" {
		query = query.Where("PredictionType", "==", predictionType)
	}

	query, err := s.applyCursorPagination(query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list forecasts: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	forecasts := make([]*model.ForecastRecord, 0, len(docs))
	for _, doc := range docs {
		var f model.ForecastRecord
		if err := doc.DataTo(&f); err != nil {
			return nil, "", fmt.Errorf("failed to parse forecast: %w", err)
		}
		forecasts = append(forecasts, &f)
	}
	return forecasts, nextPageToken, nil
}

// CreateAnomaly persists an anomaly record. The document is keyed by the
// transaction id so concurrent detection runs cannot double-insert: the
// second Create fails with AlreadyExists, surfaced as ErrAlreadyExists.
func (s *FirestoreStore) CreateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error {
	_, err := s.client.Collection("anomalies").Doc(anomaly.TransactionID).Create(ctx, anomaly)
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyExists
	}
	return err
}

// GetAnomalyByTransaction returns the anomaly record for a transaction.
func (s *FirestoreStore) GetAnomalyByTransaction(ctx context.Context, userID, transactionID string) (*model.AnomalyRecord, error) {
	doc, err := s.client.Collection("anomalies").Doc(transactionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anomaly: %w", err)
	}
	var a model.AnomalyRecord
	if err := doc.DataTo(&a); err != nil {
		return nil, fmt.Errorf("failed to parse anomaly: %w", err)
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	return &a, nil
}

// ListAnomalies lists a user's anomaly records. Severity and score filtering
// happens client-side: the collection is small per user and Firestore only
// allows one inequality field per query, which the score filter already uses.
func (s *FirestoreStore) ListAnomalies(ctx context.Context, userID string, filter AnomalyFilter, pageSize int32, pageToken string) ([]*model.AnomalyRecord, string, error) {
	query := s.client.Collection("anomalies").Query.
		Where("UserID", "==", userID)
	if !filter.IncludeDismissed {
		query = query.Where("Dismissed", "==", false)
	}

	query, err := s.applyCursorPagination(query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list anomalies: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	minRank := severityRank(filter.MinSeverity)
	anomalies := make([]*model.AnomalyRecord, 0, len(docs))
	for _, doc := range docs {
		var a model.AnomalyRecord
		if err := doc.DataTo(&a); err != nil {
			return nil, "", fmt.Errorf("failed to parse anomaly: %w", err)
		}
		if severityRank(a.Severity) < minRank || a.Score < filter.MinScore {
			continue
		}
		anomalies = append(anomalies, &a)
	}
	return anomalies, nextPageToken, nil
}

// UpdateAnomaly replaces an existing anomaly record.
func (s *FirestoreStore) UpdateAnomaly(ctx context.Context, anomaly *model.AnomalyRecord) error {
	doc := s.client.Collection("anomalies").Doc(anomaly.TransactionID)
	if _, err := doc.Get(ctx); status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	_, err := doc.Set(ctx, anomaly)
	return err
}

// GetGoal returns a goal by id.
func (s *FirestoreStore) GetGoal(ctx context.Context, goalID string) (*model.Goal, error) {
	doc, err := s.client.Collection("goals").Doc(goalID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	var g model.Goal
	if err := doc.DataTo(&g); err != nil {
		return nil, fmt.Errorf("failed to parse goal: %w", err)
	}
	return &g, nil
}

// ListGoalContributions returns a goal's contributions, most recent first.
func (s *FirestoreStore) ListGoalContributions(ctx context.Context, goalID string, limit int32) ([]*model.GoalContribution, error) {
	query := s.client.Collection("goalContributions").Query.
		Where("GoalID", "==", goalID).
		OrderBy("Date", firestore.Desc)
	if limit > 0 {
		query = query.Limit(int(limit))
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list goal contributions: %w", err)
	}

	contributions := make([]*model.GoalContribution, 0, len(docs))
	for _, doc := range docs {
		var c model.GoalContribution
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("failed to parse goal contribution: %w", err)
		}
		contributions = append(contributions, &c)
	}
	return contributions, nil
}

// ListBudgets returns a user's budgets.
func (s *FirestoreStore) ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]*model.Budget, error) {
	query := s.client.Collection("budgets").Query.
		Where("UserID", "==", userID)
	if !includeInactive {
		query = query.Where("IsActive", "==", true)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	budgets := make([]*model.Budget, 0, len(docs))
	for _, doc := range docs {
		var b model.Budget
		if err := doc.DataTo(&b); err != nil {
			return nil, fmt.Errorf("failed to parse budget: %w", err)
		}
		budgets = append(budgets, &b)
	}
	return budgets, nil
}

func aiConfigDocID(userID, feature string) string {
	return userID + "_" + feature
}

// GetAIFeatureConfig returns a user's AI feature config.
func (s *FirestoreStore) GetAIFeatureConfig(ctx context.Context, userID, feature string) (*model.AIFeatureConfig, error) {
	doc, err := s.client.Collection("aiFeatureConfigs").Doc(aiConfigDocID(userID, feature)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get AI feature config: %w", err)
	}
	var cfg model.AIFeatureConfig
	if err := doc.DataTo(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse AI feature config: %w", err)
	}
	return &cfg, nil
}

// UpdateAIFeatureConfig upserts a user's AI feature config.
func (s *FirestoreStore) UpdateAIFeatureConfig(ctx context.Context, config *model.AIFeatureConfig) error {
	_, err := s.client.Collection("aiFeatureConfigs").Doc(aiConfigDocID(config.UserID, config.Feature)).Set(ctx, config)
	return err
}

// CreateUsageEvent persists a usage event.
func (s *FirestoreStore) CreateUsageEvent(ctx context.Context, event *model.UsageEvent) error {
	_, err := s.client.Collection("usageEvents").Doc(event.ID).Set(ctx, event)
	return err
}

// ListUserIDs returns the ids of all user documents.
func (s *FirestoreStore) ListUserIDs(ctx context.Context) ([]string, error) {
	docs, err := s.client.Collection("users").Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}
