package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

const (
	baselineWindowDays = 90
	baselineMinSamples = 10

	zScoreFlagThreshold     = 3.0
	zScoreCriticalThreshold = 5.0
	anomalyScoreCap         = 0.99

	// AnomalyTypeAmountOutlier labels transactions flagged by the z-score
	// detector.
	AnomalyTypeAmountOutlier = "AMOUNT_OUTLIER"
)

// expenseBaseline holds trailing-window statistics for a user's expenses.
type expenseBaseline struct {
	mean   float64
	stddev float64
	count  int
}

// riskClassification is the JSON contract for the per-anomaly narrative
// enrichment.
type riskClassification struct {
	Analysis  string `json:"analysis"`
	RiskLevel string `json:"riskLevel"`
	Action    string `json:"action"`
}

// placeholderClassification fills in when the narrative call fails. The
// anomaly record is persisted either way.
var placeholderClassification = riskClassification{
	Analysis:  "Automatic risk analysis unavailable.",
	RiskLevel: "UNKNOWN",
	Action:    "REVIEW",
}

// computeExpenseBaseline derives the mean and population standard deviation
// of the user's EXPENSE transactions over the trailing window. Returns nil
// (no baseline) when fewer than baselineMinSamples points exist or the
// deviation is zero; detection is skipped entirely in that case.
func (e *Engine) computeExpenseBaseline(ctx context.Context, userID string, now time.Time) (*expenseBaseline, error) {
	start := now.AddDate(0, 0, -baselineWindowDays)
	var amounts []float64

	pageToken := ""
	for {
		txs, nextToken, err := e.store.ListTransactions(ctx, userID, store.TransactionFilter{
			Type:      model.TransactionTypeExpense,
			StartDate: &start,
			EndDate:   &now,
		}, ledgerPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list expense transactions: %w", err)
		}
		for _, tx := range txs {
			amounts = append(amounts, tx.Amount().InexactFloat64())
		}
		if nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	if len(amounts) < baselineMinSamples {
		return nil, nil
	}

	var sum float64
	for _, a := range amounts {
		sum += a
	}
	mean := sum / float64(len(amounts))

	var varianceSum float64
	for _, a := range amounts {
		diff := a - mean
		varianceSum += diff * diff
	}
	// Population variance, not the Bessel-corrected sample variant.
	stddev := math.Sqrt(varianceSum / float64(len(amounts)))
	if stddev == 0 {
		return nil, nil
	}

	return &expenseBaseline{mean: mean, stddev: stddev, count: len(amounts)}, nil
}

// DetectAnomalies runs z-score detection over the user's expense
// transactions for one day and persists a record per new finding. Detection
// is idempotent per transaction: an existing record short-circuits, and the
// store's uniqueness guarantee on the transaction id is the backstop for
// concurrent runs.
func (e *Engine) DetectAnomalies(ctx context.Context, userID string, day time.Time) ([]*model.AnomalyRecord, error) {
	now := e.now().UTC()
	log := e.logger.WithField("user_id", userID)

	baseline, err := e.computeExpenseBaseline(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		log.Debug("no expense baseline, skipping anomaly detection")
		return nil, nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	var flagged []*model.AnomalyRecord
	pageToken := ""
	for {
		txs, nextToken, err := e.store.ListTransactions(ctx, userID, store.TransactionFilter{
			Type:      model.TransactionTypeExpense,
			StartDate: &dayStart,
			EndDate:   &dayEnd,
		}, ledgerPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list day's transactions: %w", err)
		}

		for _, tx := range txs {
			record, err := e.evaluateTransaction(ctx, baseline, tx, now)
			if err != nil {
				return nil, err
			}
			if record != nil {
				flagged = append(flagged, record)
			}
		}

		if nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	if len(flagged) > 0 {
		log.WithField("count", len(flagged)).Info("anomalies detected")
	}
	return flagged, nil
}

// evaluateTransaction scores one transaction against the baseline and
// persists a record when it qualifies. Returns nil when the transaction is
// within bounds or already recorded.
func (e *Engine) evaluateTransaction(ctx context.Context, baseline *expenseBaseline, tx *model.Transaction, now time.Time) (*model.AnomalyRecord, error) {
	if _, err := e.store.GetAnomalyByTransaction(ctx, tx.UserID, tx.ID); err == nil {
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing anomaly: %w", err)
	}

	amount := tx.Amount().InexactFloat64()
	zScore := math.Abs(amount-baseline.mean) / baseline.stddev
	if zScore <= zScoreFlagThreshold {
		return nil, nil
	}

	severity := model.AnomalySeverityHigh
	if zScore > zScoreCriticalThreshold {
		severity = model.AnomalySeverityCritical
	}
	score := math.Min(anomalyScoreCap, zScore/10)

	deviationPct := 0.0
	if baseline.mean != 0 {
		deviationPct = (amount - baseline.mean) / baseline.mean * 100
	}

	classification := e.classifyAnomaly(ctx, tx, zScore, baseline)

	record := &model.AnomalyRecord{
		ID:                 uuid.New().String(),
		UserID:             tx.UserID,
		TransactionID:      tx.ID,
		Type:               AnomalyTypeAmountOutlier,
		Severity:           severity,
		Score:              score,
		ExpectedValueCents: int64(math.Round(baseline.mean * 100)),
		ActualValueCents:   tx.AmountCents,
		DeviationPct:       deviationPct,
		HistoricalAverage:  baseline.mean,
		HistoricalStdDev:   baseline.stddev,
		Analysis:           classification.Analysis,
		RiskLevel:          classification.RiskLevel,
		Action:             classification.Action,
		DetectedAt:         now,
	}

	err := e.store.CreateAnomaly(ctx, record)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race against a concurrent run; the other record stands.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist anomaly: %w", err)
	}
	return record, nil
}

// classifyAnomaly asks the narrative provider for a contextual risk
// classification. Strictly best-effort: every failure path returns the
// placeholder and is only logged.
func (e *Engine) classifyAnomaly(ctx context.Context, tx *model.Transaction, zScore float64, baseline *expenseBaseline) riskClassification {
	log := e.logger.WithFields(logrus.Fields{"user_id": tx.UserID, "transaction_id": tx.ID})

	creds, err := e.keys.ResolveKey(ctx, tx.UserID, keys.FeaturePredictiveAnalytics)
	if err != nil {
		log.WithError(err).Debug("no AI credentials for anomaly classification")
		return placeholderClassification
	}

	prompt := fmt.Sprintf(
		"An expense of %s deviates from the user's 90-day baseline (mean %.2f, stddev %.2f, z-score %.1f). "+
			"Description: %q. Classify the risk. Respond with JSON only: "+
			`{"analysis": "one sentence", "riskLevel": "LOW|MEDIUM|HIGH", "action": "IGNORE|REVIEW|ALERT"}`,
		tx.Amount().StringFixed(2), baseline.mean, baseline.stddev, zScore, tx.Description)

	completion, err := e.narrator.Complete(ctx, llm.Credentials{APIKey: creds.APIKey, Model: creds.Model}, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a personal finance risk analyst."},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		log.WithError(err).Warn("anomaly risk classification failed")
		return placeholderClassification
	}

	if e.usage != nil {
		modelName := creds.Model
		if modelName == "" {
			modelName = llm.DefaultModel
		}
		e.usage.Track(ctx, tx.UserID, keys.FeaturePredictiveAnalytics, completion.Usage, modelName, tx.ID)
	}

	raw, ok := llm.ExtractJSONObject(completion.Content)
	if !ok {
		log.Warn("anomaly risk classification returned no JSON")
		return placeholderClassification
	}
	var c riskClassification
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.Analysis == "" {
		log.Warn("anomaly risk classification was malformed")
		return placeholderClassification
	}
	return c
}

// BatchResult summarizes one scheduled batch run.
type BatchResult struct {
	UsersProcessed   int
	UsersFailed      int
	AnomaliesCreated int
	ForecastsCreated int
}

// DetectForAllUsers runs detection for every known user, sequentially. One
// user's failure never aborts the batch; it is logged and counted.
func (e *Engine) DetectForAllUsers(ctx context.Context, day time.Time) (*BatchResult, error) {
	userIDs, err := e.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &BatchResult{}
	for _, userID := range userIDs {
		records, err := e.DetectAnomalies(ctx, userID, day)
		if err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Error("anomaly detection failed for user")
			result.UsersFailed++
			continue
		}
		result.UsersProcessed++
		result.AnomaliesCreated += len(records)
	}

	e.logger.WithFields(logrus.Fields{
		"processed": result.UsersProcessed,
		"failed":    result.UsersFailed,
		"created":   result.AnomaliesCreated,
	}).Info("anomaly sweep complete")
	return result, nil
}

// ListAnomalies returns a user's anomaly records. Dismissed records are
// excluded unless the filter requests them.
func (e *Engine) ListAnomalies(ctx context.Context, userID string, filter store.AnomalyFilter, pageSize int32, pageToken string) ([]*model.AnomalyRecord, string, error) {
	return e.store.ListAnomalies(ctx, userID, filter, pageSize, pageToken)
}

// DismissAnomaly marks an anomaly as dismissed. The transition is one-way:
// dismissing an already-dismissed record is a no-op.
func (e *Engine) DismissAnomaly(ctx context.Context, userID, transactionID string) (*model.AnomalyRecord, error) {
	record, err := e.store.GetAnomalyByTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load anomaly: %w", err)
	}
	if record.Dismissed {
		return record, nil
	}

	now := e.now().UTC()
	record.Dismissed = true
	record.DismissedAt = &now
	if err := e.store.UpdateAnomaly(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to dismiss anomaly: %w", err)
	}
	return record, nil
}
