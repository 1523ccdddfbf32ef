package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"resume-tailor/pkg/config"
	"resume-tailor/pkg/database"
	"resume-tailor/pkg/document"
	"resume-tailor/pkg/job"
	"resume-tailor/pkg/mq"
	"resume-tailor/pkg/observability"
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

	dbClient, err = database.New(context.Background(),
		database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns}, logger)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return
	}
	defer dbClient.Close()

	if err := dbClient.InitSchema(context.Background()); err != nil {
		slog.Error("failed to initialize schema", "error", err)
	}

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

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)
	r.Post("/resume/customize", handleSubmitJob)
	r.Get("/resume/status/{jobID}", handleJobStatus)

	slog.Info("API server starting", "addr", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, r); err != nil {
		slog.Error("api server failed", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req job.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateSubmission(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	jobID, err := dbClient.CreateJobAndOutboxMessage(r.Context(), &req)
	if err != nil {
		slog.Error("failed to create job and outbox message", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	observability.JobsSubmitted.WithLabelValues(orText(req.OutputFormat)).Inc()
	slog.Info("job submitted", "job_id", jobID, "output_format", req.OutputFormat)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"jobId": jobID})
}

func handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	j, err := dbClient.GetJob(r.Context(), jobID)
	if err != nil {
		slog.Error("failed to load job", "job_id", jobID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if j == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	resp := job.StatusResponse{
		JobID:       j.ID,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	switch j.Status {
	case job.StatusCompleted:
		resp.Result = j.Result
	case job.StatusFailed:
		resp.Error = j.Error
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func validateSubmission(req *job.SubmissionRequest) string {
	if req.ResumeContent == "" {
		return "resumeContent is required"
	}
	if req.JobDescription == "" {
		return "jobDescription is required"
	}
	if req.ResumeFormat == "" {
		req.ResumeFormat = string(document.FormatText)
	}
	if !document.KnownInputFormat(document.Format(req.ResumeFormat)) {
		return "unknown resumeFormat: " + req.ResumeFormat
	}
	switch document.Format(req.OutputFormat) {
	case "", document.FormatText, document.FormatMarkdown, document.FormatHTML, document.FormatPDF:
	default:
		return "unknown outputFormat: " + req.OutputFormat
	}
	return ""
}

func orText(format string) string {
	if format == "" {
		return string(document.FormatText)
	}
	return format
}
