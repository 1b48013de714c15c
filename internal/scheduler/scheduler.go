// Package scheduler drives the engine's batch entry points on a cron
// cadence. The engine itself is trigger-agnostic; this is the only place
// that knows when jobs run.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/insights"
)

// Config holds the cron expressions for the scheduled jobs.
type Config struct {
	// AnomalySweepSpec runs daily anomaly detection across all users.
	AnomalySweepSpec string
	// ForecastRefreshSpec regenerates monthly forecasts for all users.
	ForecastRefreshSpec string
	// JobTimeout bounds each job run.
	JobTimeout time.Duration
}

// DefaultConfig runs the anomaly sweep every day at 03:00 and the forecast
// refresh every Monday at 04:00.
func DefaultConfig() Config {
	return Config{
		AnomalySweepSpec:    "0 3 * * *",
		ForecastRefreshSpec: "0 4 * * 1",
		JobTimeout:          30 * time.Minute,
	}
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	engine *insights.Engine
	cfg    Config
	logger *logrus.Entry
}

// New builds a Scheduler over the engine.
func New(engine *insights.Engine, cfg Config, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		cfg:    cfg,
		logger: logger.WithField("component", "scheduler"),
	}
}

// Start registers the jobs and starts the cron loop in its own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.AnomalySweepSpec, s.runAnomalySweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ForecastRefreshSpec, s.runForecastRefresh); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"anomaly_sweep":    s.cfg.AnomalySweepSpec,
		"forecast_refresh": s.cfg.ForecastRefreshSpec,
	}).Info("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runAnomalySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	day := time.Now().UTC()
	result, err := s.engine.DetectForAllUsers(ctx, day)
	if err != nil {
		s.logger.WithError(err).Error("anomaly sweep failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"processed": result.UsersProcessed,
		"failed":    result.UsersFailed,
		"created":   result.AnomaliesCreated,
	}).Info("anomaly sweep finished")
}

func (s *Scheduler) runForecastRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	result, err := s.engine.RefreshForecasts(ctx)
	if err != nil {
		s.logger.WithError(err).Error("forecast refresh failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"processed": result.UsersProcessed,
		"failed":    result.UsersFailed,
		"created":   result.ForecastsCreated,
	}).Info("forecast refresh finished")
}
