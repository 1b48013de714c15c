// Package insights implements the predictive analytics and anomaly-detection
// engine: monthly history aggregation, trend estimation, goal velocity
// forecasting, composite health scoring and z-score outlier detection.
//
// The engine holds no state between invocations. Every operation is a
// synchronous computation over data owned by the collaborators injected at
// construction time.
package insights

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/store"
	"github.com/wealthpulse/backend/internal/usage"
)

// ErrGoalNotFound is returned when a goal id does not resolve.
var ErrGoalNotFound = errors.New("insights: goal not found")

// Engine composes the analytics operations over the injected collaborators.
type Engine struct {
	store    store.Store
	keys     keys.Manager
	narrator llm.Client
	usage    usage.Tracker
	logger   *logrus.Entry
	now      func() time.Time
}

// NewEngine builds an Engine. All collaborators are required except the
// usage tracker, which may be nil when token accounting is disabled.
func NewEngine(st store.Store, km keys.Manager, narrator llm.Client, tracker usage.Tracker, logger *logrus.Logger) *Engine {
	return &Engine{
		store:    st,
		keys:     km,
		narrator: narrator,
		usage:    tracker,
		logger:   logger.WithField("component", "insights"),
		now:      time.Now,
	}
}
