package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wealthpulse/backend/internal/insights"
	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/llm"
	"github.com/wealthpulse/backend/internal/scheduler"
	"github.com/wealthpulse/backend/internal/store"
	"github.com/wealthpulse/backend/internal/usage"
)

func main() {
	// Missing .env is fine in deployed environments: config comes from the
	// real environment there.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx := context.Background()

	useMemoryStore := os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local"

	var storeImpl store.Store
	if useMemoryStore {
		logger.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
		if projectID == "" {
			logger.Fatal("GOOGLE_CLOUD_PROJECT is required when not using the memory store")
		}
		firestoreClient, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatalf("failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()
		storeImpl = store.NewFirestoreStore(firestoreClient)
	}

	keyManager := keys.NewStoreManager(storeImpl, logger)
	narrator := llm.NewGeminiClient()
	tracker := usage.NewStoreTracker(storeImpl, logger)
	engine := insights.NewEngine(storeImpl, keyManager, narrator, tracker, logger)

	sched := scheduler.New(engine, schedulerConfig(), logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("failed to start scheduler: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	sched.Stop()
}

func schedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if spec := os.Getenv("ANOMALY_SWEEP_CRON"); spec != "" {
		cfg.AnomalySweepSpec = spec
	}
	if spec := os.Getenv("FORECAST_REFRESH_CRON"); spec != "" {
		cfg.ForecastRefreshSpec = spec
	}
	return cfg
}
