package main

import (
	"context"
	"log/slog"
	"time"

	"resume-tailor/pkg/config"
	"resume-tailor/pkg/database"
	"resume-tailor/pkg/mq"
	"resume-tailor/pkg/observability"
)

func main() {
	logger := observability.NewLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return
	}

	ctx := context.Background()

	dbClient, err := database.New(ctx,
		database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}
	defer dbClient.Close()

	mqClient, err := mq.New(cfg.RabbitURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		return
	}
	defer mqClient.Close()

	// Ensure topology exists; safe if already declared
	if err := mqClient.SetupTopology(); err != nil {
		logger.Error("failed to setup rabbitmq topology", "error", err)
		return
	}

	logger.Info("outbox publisher started")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		drainOutbox(ctx, dbClient, mqClient, logger)
	}
}

func drainOutbox(ctx context.Context, db *database.Client, mqClient *mq.Client, logger *slog.Logger) {
	messages, err := db.FetchOutboxMessages(ctx, 100)
	if err != nil {
		logger.Error("failed to fetch outbox messages", "error", err)
		return
	}
	for _, m := range messages {
		if err := mqClient.PublishJob(ctx, m.JobID); err != nil {
			logger.Error("failed to publish job from outbox", "error", err, "job_id", m.JobID)
			continue
		}
		if err := db.DeleteOutboxMessage(ctx, m.ID); err != nil {
			logger.Error("failed to delete outbox message after publish", "error", err, "outbox_id", m.ID)
			continue
		}
		logger.Info("published job from outbox", "job_id", m.JobID)
	}
}
