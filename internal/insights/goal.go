package insights

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/wealthpulse/backend/internal/model"
	"github.com/wealthpulse/backend/internal/store"
)

const (
	// goalVelocityWindowDays is both the lookback and the divisor: velocity
	// is the 90-day contribution sum over 90, not over the count of active
	// days. Consumers depend on this exact semantic.
	goalVelocityWindowDays = 90

	// goalContributionFetchLimit caps how much history is read per forecast.
	goalContributionFetchLimit = 90

	daysPerMonth = 30
)

// ForecastGoalAchievement projects when a savings goal completes based on
// the contribution velocity over the trailing 90 days.
func (e *Engine) ForecastGoalAchievement(ctx context.Context, goalID string) (*model.GoalForecast, error) {
	goal, err := e.store.GetGoal(ctx, goalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}

	now := e.now().UTC()
	remaining := decimal.New(goal.TargetAmountCents-goal.CurrentAmountCents, -2)

	if remaining.LessThanOrEqual(decimal.Zero) {
		return &model.GoalForecast{
			GoalID:        goalID,
			Remaining:     remaining,
			EstimatedDate: &now,
			Status:        model.GoalStatusCompleted,
		}, nil
	}

	contributions, err := e.store.ListGoalContributions(ctx, goalID, goalContributionFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal contributions: %w", err)
	}

	cutoff := now.AddDate(0, 0, -goalVelocityWindowDays)
	sum := decimal.Zero
	for _, c := range contributions {
		if c.Date.Before(cutoff) {
			continue
		}
		sum = sum.Add(decimal.New(c.AmountCents, -2))
	}

	velocityPerDay := sum.Div(decimal.NewFromInt(goalVelocityWindowDays))
	if velocityPerDay.LessThanOrEqual(decimal.Zero) {
		return &model.GoalForecast{
			GoalID:         goalID,
			Remaining:      remaining,
			VelocityPerDay: velocityPerDay,
			Status:         model.GoalStatusStalled,
		}, nil
	}

	daysToFinish := remaining.Div(velocityPerDay).InexactFloat64()
	estimated := now.AddDate(0, 0, int(math.Ceil(daysToFinish)))

	return &model.GoalForecast{
		GoalID:           goalID,
		Remaining:        remaining,
		VelocityPerDay:   velocityPerDay,
		VelocityPerMonth: velocityPerDay.Mul(decimal.NewFromInt(daysPerMonth)),
		EstimatedDate:    &estimated,
		Status:           model.GoalStatusOnTrack,
		DaysToFinish:     daysToFinish,
	}, nil
}
