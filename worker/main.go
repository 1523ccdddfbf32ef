package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-tailor/pkg/ai"
	"resume-tailor/pkg/breaker"
	"resume-tailor/pkg/config"
	"resume-tailor/pkg/database"
	"resume-tailor/pkg/document"
	"resume-tailor/pkg/mq"
	"resume-tailor/pkg/observability"
	"resume-tailor/pkg/pipeline"
	"resume-tailor/pkg/worker"
)

var (
	dbClient *database.Client
	mqClient *mq.Client
	logger   *slog.Logger
)

func main() {
	logger = observability.NewLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err = database.New(ctx,
		database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns}, logger)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return
	}
	defer dbClient.Close()

	mqClient, err = mq.New(cfg.RabbitURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		return
	}
	defer mqClient.Close()

	if err := mqClient.SetupTopology(); err != nil {
		slog.Error("failed to setup rabbitmq topology", "error", err)
		return
	}

	observability.StartMetricsServer(cfg.MetricsAddr)

	breakers := breaker.NewRegistry(breaker.Config{
		Threshold:    cfg.AI.BreakerThreshold,
		ResetTimeout: cfg.AI.BreakerResetTimeout,
	}, logger)
	provider := ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.CallTimeout, logger)
	aiClient := ai.NewClient(provider, breakers, cfg.AI.MaxRetries, cfg.AI.RetryBackoffBase, logger)

	fetcher := document.NewFetcher(cfg.AI.CallTimeout, logger)
	formatter := document.NewFormatter(document.NewChromedpRenderer())

	orchestrator, err := pipeline.NewOrchestrator(aiClient, fetcher, formatter, pipeline.Models{
		Profiler:   cfg.AI.ProfilerModel,
		Researcher: cfg.AI.ResearcherModel,
		Strategist: cfg.AI.StrategistModel,
		Extractor:  cfg.AI.ExtractorModel,
	}, logger)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		return
	}

	runner := worker.NewRunner(dbClient, mqClient, orchestrator.Run, worker.Config{
		MaxAttempts:       cfg.Worker.MaxJobAttempts,
		BackoffBase:       cfg.Worker.RetryBackoffBase,
		ProcessingTimeout: cfg.Worker.ProcessingTimeout,
	}, logger)

	deliveryChan, err := mqClient.ConsumeJobs(cfg.Worker.Concurrency)
	if err != nil {
		slog.Error("failed to start consuming jobs", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveryChan:
					if !ok {
						return
					}
					handleMessage(ctx, runner, msg)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.RunReaper(ctx, cfg.Worker.ReaperInterval)
	}()

	slog.Info("worker started. waiting for jobs...", "concurrency", cfg.Worker.Concurrency)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutdown signal received, stopping workers...")
	cancel()
	wg.Wait()
	slog.Info("all workers stopped gracefully")
}

func handleMessage(ctx context.Context, runner *worker.Runner, msg amqp.Delivery) {
	jobID := string(msg.Body)

	switch runner.Handle(ctx, jobID) {
	case worker.OutcomeAck:
		if err := msg.Ack(false); err != nil {
			logger.Error("failed to ack message", "job_id", jobID, "error", err)
		}
	case worker.OutcomeRequeue:
		if err := msg.Nack(false, true); err != nil {
			logger.Error("failed to nack message", "job_id", jobID, "error", err)
		}
	}
}
