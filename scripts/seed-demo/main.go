// seed-demo writes eight months of realistic demo data straight into
// Firestore so the analytics daemon has something to chew on: a steady
// salary, noisy day-to-day expenses, a savings goal with regular
// contributions, an active budget and one deliberately absurd expense
// for the anomaly detector to find.
//
// Usage:
//
//	export GOOGLE_CLOUD_PROJECT=my-project
//	go run ./scripts/seed-demo
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/wealthpulse/backend/internal/keys"
	"github.com/wealthpulse/backend/internal/model"
)

const demoUserID = "demo-user"

func main() {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42)) // deterministic, reruns produce the same ledger

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		log.Fatal("GOOGLE_CLOUD_PROJECT is required")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		log.Fatalf("failed to create Firestore client: %v", err)
	}
	defer client.Close()

	now := time.Now().UTC()

	log.Printf("seeding demo data for %s in project %s", demoUserID, projectID)

	if _, err := client.Collection("users").Doc(demoUserID).Set(ctx, map[string]interface{}{
		"DisplayName": "Demo User",
		"CreatedAt":   now,
	}); err != nil {
		log.Fatalf("failed to create user doc: %v", err)
	}

	txCount := 0
	writeTx := func(txType model.TransactionType, description string, amountCents int64, date time.Time) {
		tx := &model.Transaction{
			ID:          uuid.New().String(),
			UserID:      demoUserID,
			Type:        txType,
			Description: description,
			AmountCents: amountCents,
			Date:        date,
			CreatedAt:   date,
		}
		if _, err := client.Collection("transactions").Doc(tx.ID).Set(ctx, tx); err != nil {
			log.Fatalf("failed to write transaction: %v", err)
		}
		txCount++
	}

	expenses := []struct {
		description string
		baseCents   int64
	}{
		{"groceries", 18000},
		{"fuel", 9000},
		{"restaurant", 12000},
		{"pharmacy", 6000},
		{"streaming subscription", 3990},
		{"utilities", 22000},
	}

	for monthsAgo := 7; monthsAgo >= 0; monthsAgo-- {
		monthStart := time.Date(now.Year(), now.Month(), 1, 9, 0, 0, 0, time.UTC).AddDate(0, -monthsAgo, 0)

		// Salary on the 5th, with a small raise over time.
		salary := int64(520000 + (7-monthsAgo)*5000)
		writeTx(model.TransactionTypeIncome, "salary", salary, monthStart.AddDate(0, 0, 4))

		// A spread of household expenses with +/-20% jitter.
		for _, e := range expenses {
			day := 2 + rng.Intn(24)
			jitter := 0.8 + rng.Float64()*0.4
			writeTx(model.TransactionTypeExpense, e.description, int64(float64(e.baseCents)*jitter), monthStart.AddDate(0, 0, day))
		}

		// Monthly transfer to savings. Counts toward volume, not the sums.
		writeTx(model.TransactionTypeTransfer, "transfer to savings", 50000, monthStart.AddDate(0, 0, 6))
	}

	// One outlier for the z-score detector: ~15x the typical expense, today.
	writeTx(model.TransactionTypeExpense, "emergency car repair", 250000, now)

	goal := &model.Goal{
		ID:                 uuid.New().String(),
		UserID:             demoUserID,
		Name:               "emergency fund",
		TargetAmountCents:  1000000,
		CurrentAmountCents: 450000,
		CreatedAt:          now.AddDate(0, -7, 0),
	}
	if _, err := client.Collection("goals").Doc(goal.ID).Set(ctx, goal); err != nil {
		log.Fatalf("failed to write goal: %v", err)
	}
	for weeksAgo := 12; weeksAgo >= 1; weeksAgo-- {
		c := &model.GoalContribution{
			ID:          uuid.New().String(),
			GoalID:      goal.ID,
			AmountCents: 12500,
			Date:        now.AddDate(0, 0, -7*weeksAgo),
		}
		if _, err := client.Collection("goalContributions").Doc(c.ID).Set(ctx, c); err != nil {
			log.Fatalf("failed to write goal contribution: %v", err)
		}
	}

	budget := &model.Budget{
		ID:                uuid.New().String(),
		UserID:            demoUserID,
		Name:              "household",
		MonthlyLimitCents: 450000,
		IsActive:          true,
		CreatedAt:         now.AddDate(0, -7, 0),
	}
	if _, err := client.Collection("budgets").Doc(budget.ID).Set(ctx, budget); err != nil {
		log.Fatalf("failed to write budget: %v", err)
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg := &model.AIFeatureConfig{
			UserID:            demoUserID,
			Feature:           keys.FeaturePredictiveAnalytics,
			APIKey:            apiKey,
			Provider:          "gemini",
			MonthlyTokenLimit: 500000,
			PeriodStart:       time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		}
		docID := demoUserID + "_" + keys.FeaturePredictiveAnalytics
		if _, err := client.Collection("aiFeatureConfigs").Doc(docID).Set(ctx, cfg); err != nil {
			log.Fatalf("failed to write AI feature config: %v", err)
		}
		log.Println("configured predictive analytics with the provided GEMINI_API_KEY")
	} else {
		log.Println("GEMINI_API_KEY not set, skipping AI feature config (narratives will be unavailable)")
	}

	log.Printf("done: %d transactions, 1 goal, 12 contributions, 1 budget", txCount)
}
