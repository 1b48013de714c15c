package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/model"
)

const (
	forecastHistoryMonths = 12
	forecastMinMonths     = 3
	forecastConfidence    = 0.85

	// PredictionTypeMonthly labels the persisted monthly forecast records.
	PredictionTypeMonthly = "MONTHLY"
)

// NarrativeForecast is the JSON contract requested from the narrative
// provider. The provider output is untrusted; see parseNarrativeForecast.
type NarrativeForecast struct {
	Summary          string   `json:"summary"`
	HealthScore      int      `json:"healthScore"`
	PredictedExpense float64  `json:"predictedExpense"`
	PredictedIncome  float64  `json:"predictedIncome"`
	SavingsGoal      float64  `json:"savingsGoal"`
	Insights         []string `json:"insights"`
	Recommendation   string   `json:"recommendation"`
}

// ForecastResult is the orchestrator's response. When Available is false the
// engine had fewer than forecastMinMonths populated months and performed no
// side effects.
type ForecastResult struct {
	Available bool
	Reason    string
	Forecast  *NarrativeForecast
	Trends    *model.TrendAnalysis
	Record    *model.ForecastRecord
}

// GenerateForecast produces and persists a forecast for the next calendar
// month: 12 months of aggregated history feed an OLS trend fit, the
// narrative provider turns the numbers into a structured summary, and the
// combined result is stored with a HYBRID algorithm tag.
//
// Credential failures (not configured, quota exhausted) propagate. A
// malformed narrative response never does: the deterministic trend-only
// fallback takes over.
func (e *Engine) GenerateForecast(ctx context.Context, userID string) (*ForecastResult, error) {
	now := e.now().UTC()

	history, err := e.MonthlyHistory(ctx, userID, forecastHistoryMonths, now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate history: %w", err)
	}
	if populated := populatedMonths(history); populated < forecastMinMonths {
		return &ForecastResult{
			Available: false,
			Reason:    fmt.Sprintf("insufficient transaction history: %d populated months, need at least %d", populated, forecastMinMonths),
		}, nil
	}

	creds, err := e.keys.ResolveKey(ctx, userID, keys.FeaturePredictiveAnalytics)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AI credentials: %w", err)
	}
	modelName := creds.Model
	if modelName == "" {
		modelName = llm.DefaultModel
	}

	trends := AnalyzeTrends(history)

	completion, err := e.narrator.Complete(ctx, llm.Credentials{APIKey: creds.APIKey, Model: creds.Model}, []llm.Message{
		{Role: llm.RoleSystem, Content: forecastSystemPrompt},
		{Role: llm.RoleUser, Content: buildForecastPrompt(history, trends)},
	})
	if err != nil {
		return nil, fmt.Errorf("narrative generation failed: %w", err)
	}

	forecast, payload := parseNarrativeForecast(completion.Content)
	if forecast == nil {
		e.logger.WithField("user_id", userID).
			WithField("sample", sample(completion.Content, 120)).
			Warn("malformed narrative forecast, using trend fallback")
		forecast = fallbackForecast(trends)
		fallbackJSON, _ := json.Marshal(forecast)
		payload = string(fallbackJSON)
	}

	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	periodEnd := periodStart.AddDate(0, 1, 0).Add(-time.Second)

	record := &model.ForecastRecord{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		PredictionType:         PredictionTypeMonthly,
		PeriodStart:            periodStart,
		PeriodEnd:              periodEnd,
		PredictedIncomeCents:   toCents(forecast.PredictedIncome),
		PredictedExpensesCents: toCents(forecast.PredictedExpense),
		PredictedBalanceCents:  toCents(forecast.PredictedIncome - forecast.PredictedExpense),
		Confidence:             forecastConfidence,
		Algorithm:              "HYBRID_" + modelName,
		NarrativePayload:       payload,
		CreatedAt:              now,
	}
	if err := e.store.CreateForecast(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist forecast: %w", err)
	}

	if e.usage != nil {
		e.usage.Track(ctx, userID, keys.FeaturePredictiveAnalytics, completion.Usage, modelName, record.ID)
	}

	return &ForecastResult{
		Available: true,
		Forecast:  forecast,
		Trends:    trends,
		Record:    record,
	}, nil
}

// RefreshForecasts generates a fresh forecast for every known user. Users
// without enough history or without configured credentials are expected and
// skipped; anything else counts as a failure. One user's failure never
// aborts the batch.
func (e *Engine) RefreshForecasts(ctx context.Context) (*BatchResult, error) {
	userIDs, err := e.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &BatchResult{}
	for _, userID := range userIDs {
		res, err := e.GenerateForecast(ctx, userID)
		switch {
		case errors.Is(err, keys.ErrNotConfigured):
			e.logger.WithField("user_id", userID).Debug("skipping forecast, AI feature not configured")
		case err != nil:
			e.logger.WithError(err).WithField("user_id", userID).Error("forecast refresh failed for user")
			result.UsersFailed++
		case !res.Available:
			e.logger.WithField("user_id", userID).WithField("reason", res.Reason).Debug("forecast unavailable")
			result.UsersProcessed++
		default:
			result.UsersProcessed++
			result.ForecastsCreated++
		}
	}

	e.logger.WithFields(logrus.Fields{
		"processed": result.UsersProcessed,
		"failed":    result.UsersFailed,
		"created":   result.ForecastsCreated,
	}).Info("forecast refresh complete")
	return result, nil
}

const forecastSystemPrompt = "You are a personal finance analyst. " +
	"You receive a household's monthly income/expense history and trend figures, " +
	"and you respond with a single strict JSON object and nothing else."

// buildForecastPrompt renders the historical table and trend figures for the
// narrative provider.
func buildForecastPrompt(history []model.MonthlyBucket, trends *model.TrendAnalysis) string {
	var b strings.Builder
	b.WriteString("Monthly history (period, income, expense, balance, transactions):\n")
	for _, bucket := range history {
		fmt.Fprintf(&b, "%s: income=%s expense=%s balance=%s txs=%d\n",
			bucket.Period,
			bucket.Income.StringFixed(2),
			bucket.Expense.StringFixed(2),
			bucket.Balance.StringFixed(2),
			bucket.TransactionCount)
	}
	fmt.Fprintf(&b, "\nTrend estimates (ordinary least squares):\n")
	fmt.Fprintf(&b, "income: slope=%.2f nextMonth=%.2f growth=%.1f%%\n",
		trends.Income.Slope, trends.Income.NextValue, trends.IncomeGrowthPct)
	fmt.Fprintf(&b, "expense: slope=%.2f nextMonth=%.2f growth=%.1f%%\n",
		trends.Expense.Slope, trends.Expense.NextValue, trends.ExpenseGrowthPct)
	if trends.IsExpenseAnomaly {
		b.WriteString("note: most recent month's expenses exceed 1.5x the window average\n")
	}
	b.WriteString("\nRespond with JSON only, exactly this shape:\n")
	b.WriteString(`{"summary": "...", "healthScore": 0-100, "predictedExpense": number, ` +
		`"predictedIncome": number, "savingsGoal": number, "insights": ["up to 3 strings"], ` +
		`"recommendation": "..."}`)
	return b.String()
}

// parseNarrativeForecast validates untrusted model output. It returns the
// parsed forecast plus the extracted JSON payload, or (nil, "") when the
// text does not contain a usable object. This path must never panic or
// propagate an error: the caller falls back to the deterministic forecast.
func parseNarrativeForecast(content string) (*NarrativeForecast, string) {
	raw, ok := llm.ExtractJSONObject(content)
	if !ok {
		return nil, ""
	}

	var f NarrativeForecast
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, ""
	}
	if f.Summary == "" || f.Recommendation == "" {
		return nil, ""
	}
	if f.PredictedExpense < 0 || f.PredictedIncome < 0 {
		return nil, ""
	}

	if f.HealthScore < 0 {
		f.HealthScore = 0
	}
	if f.HealthScore > 100 {
		f.HealthScore = 100
	}
	if len(f.Insights) > 3 {
		f.Insights = f.Insights[:3]
	}
	if f.SavingsGoal < 0 {
		f.SavingsGoal = 0
	}
	return &f, raw
}

// fallbackForecast builds a deterministic response purely from the trend
// estimate. Used whenever the narrative payload is unusable.
func fallbackForecast(trends *model.TrendAnalysis) *NarrativeForecast {
	predictedIncome := trends.Income.NextValue
	predictedExpense := trends.Expense.NextValue
	savings := predictedIncome - predictedExpense
	if savings < 0 {
		savings = 0
	}
	return &NarrativeForecast{
		Summary:          "Forecast generated from historical trends.",
		HealthScore:      50,
		PredictedExpense: predictedExpense,
		PredictedIncome:  predictedIncome,
		SavingsGoal:      savings,
		Insights:         []string{"Narrative analysis was unavailable; figures are projected from your recent trend."},
		Recommendation:   "Review your recent spending and keep contributions steady.",
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func sample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
