// Package model defines the domain entities the analytics engine reads and writes.
// Persisted money amounts are integer cents; the analytics layer converts to
// decimal for monetary arithmetic and to float64 only for statistics.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// AnomalySeverity grades a flagged transaction.
type AnomalySeverity string

const (
	AnomalySeverityHigh     AnomalySeverity = "HIGH"
	AnomalySeverityCritical AnomalySeverity = "CRITICAL"
)

// GoalStatus is the projected state of a savings goal.
type GoalStatus string

const (
	GoalStatusCompleted GoalStatus = "COMPLETED"
	GoalStatusOnTrack   GoalStatus = "ON_TRACK"
	GoalStatusStalled   GoalStatus = "STALLED"
)

// HealthLevel is the tier assigned to a composite financial-health score.
type HealthLevel string

const (
	HealthLevelBronze   HealthLevel = "BRONZE"
	HealthLevelPrata    HealthLevel = "PRATA"
	HealthLevelOuro     HealthLevel = "OURO"
	HealthLevelPlatina  HealthLevel = "PLATINA"
	HealthLevelDiamante HealthLevel = "DIAMANTE"
)

// Transaction is a single ledger entry. The ledger is owned by the CRUD
// subsystems; the engine only reads it.
type Transaction struct {
	ID          string
	UserID      string
	Type        TransactionType
	Description string
	AmountCents int64
	Date        time.Time
	CreatedAt   time.Time
}

// Amount returns the transaction amount as a decimal.
func (t *Transaction) Amount() decimal.Decimal {
	return decimal.New(t.AmountCents, -2)
}

// MonthlyBucket is one calendar month of aggregated ledger activity.
// A requested window of N months always yields exactly N buckets,
// zero-seeded and chronologically ordered.
type MonthlyBucket struct {
	Period           string // YYYY-MM
	Income           decimal.Decimal
	Expense          decimal.Decimal
	Balance          decimal.Decimal
	TransactionCount int
}

// TrendEstimate is an OLS fit over a monthly series. Derived, never persisted.
type TrendEstimate struct {
	Slope     float64
	Intercept float64
	NextValue float64
}

// TrendAnalysis bundles the per-series trend fits for a history window.
type TrendAnalysis struct {
	Income           TrendEstimate
	Expense          TrendEstimate
	AvgExpense       float64
	IsExpenseAnomaly bool
	IncomeGrowthPct  float64
	ExpenseGrowthPct float64
}

// ForecastRecord is a persisted monthly forecast. Records are append-only:
// each orchestrator invocation writes a new record keyed to the next
// calendar month.
type ForecastRecord struct {
	ID                     string
	UserID                 string
	PredictionType         string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	PredictedIncomeCents   int64
	PredictedExpensesCents int64
	PredictedBalanceCents  int64
	Confidence             float64
	Algorithm              string
	NarrativePayload       string
	CreatedAt              time.Time
}

// AnomalyRecord is a persisted outlier finding for a single transaction.
// At most one record exists per TransactionID. Dismissal is one-way.
type AnomalyRecord struct {
	ID                 string
	UserID             string
	TransactionID      string
	Type               string
	Severity           AnomalySeverity
	Score              float64
	ExpectedValueCents int64
	ActualValueCents   int64
	DeviationPct       float64
	HistoricalAverage  float64
	HistoricalStdDev   float64
	Analysis           string
	RiskLevel          string
	Action             string
	DetectedAt         time.Time
	Dismissed          bool
	DismissedAt        *time.Time
}

// Goal is a savings goal owned by the goals subsystem.
type Goal struct {
	ID                 string
	UserID             string
	Name               string
	TargetAmountCents  int64
	CurrentAmountCents int64
	CreatedAt          time.Time
}

// GoalContribution is a single deposit toward a goal.
type GoalContribution struct {
	ID          string
	GoalID      string
	AmountCents int64
	Date        time.Time
}

// Budget is a monthly spending budget owned by the budgets subsystem.
// The health scorer only needs to know whether any are active.
type Budget struct {
	ID                string
	UserID            string
	Name              string
	MonthlyLimitCents int64
	IsActive          bool
	CreatedAt         time.Time
}

// GoalForecast is the ephemeral result of projecting a goal's completion
// from recent contribution velocity.
type GoalForecast struct {
	GoalID           string
	Remaining        decimal.Decimal
	VelocityPerDay   decimal.Decimal
	VelocityPerMonth decimal.Decimal
	EstimatedDate    *time.Time
	Status           GoalStatus
	DaysToFinish     float64
}

// SavingsRateScore is the savings-rate component of the health score.
type SavingsRateScore struct {
	Score int
	Max   int
	Rate  float64 // percent
}

// ConsistencyScore is the expense-consistency component of the health score.
type ConsistencyScore struct {
	Score int
	Max   int
	CV    float64 // coefficient of variation
}

// BudgetHealthScore is the budget-discipline component of the health score.
type BudgetHealthScore struct {
	Score int
	Max   int
}

// HealthScoreBreakdown is the full composite health score with its
// components, returned for transparency.
type HealthScoreBreakdown struct {
	SavingsRate  SavingsRateScore
	Consistency  ConsistencyScore
	BudgetHealth BudgetHealthScore
	Score        int
	Level        HealthLevel
}

// AIFeatureConfig holds a user's credentials and quota for one AI feature.
type AIFeatureConfig struct {
	UserID            string
	Feature           string
	APIKey            string
	Provider          string
	Model             string
	MonthlyTokenLimit int64
	TokensUsed        int64
	PeriodStart       time.Time
}

// UsageEvent records token consumption for one narrative-provider call.
type UsageEvent struct {
	ID               string
	UserID           string
	Feature          string
	PromptTokens     int32
	CompletionTokens int32
	TotalTokens      int32
	Model            string
	RelatedID        string
	CreatedAt        time.Time
}
