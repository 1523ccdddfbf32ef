// Package pipeline runs the fixed multi-stage customization pipeline for one
// job: parse, profile, research, fact extraction, generation, verification,
// and output formatting. Stages execute strictly in order; the fact-checking
// stages degrade instead of failing the job.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"resume-tailor/pkg/ai"
	"resume-tailor/pkg/document"
	"resume-tailor/pkg/job"
	"resume-tailor/pkg/observability"
)

// Services are the circuit-breaker keys for the external AI calls.
const (
	ServiceProfiler   = "profiler"
	ServiceResearcher = "researcher"
	ServiceExtractor  = "fact-extractor"
	ServiceStrategist = "strategist"
	ServiceVerifier   = "fact-checker"
)

// ChatClient is the protected chat-completion surface (pkg/ai.Client).
type ChatClient interface {
	Execute(ctx context.Context, service string, req ai.Request) (string, error)
}

// Fetcher resolves job-description URLs into text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// OutputFormatter renders the final resume text.
type OutputFormatter interface {
	Format(ctx context.Context, text string, target document.Format) ([]byte, string, error)
}

// Models selects the model per stage; per-job overrides take precedence.
type Models struct {
	Profiler   string
	Researcher string
	Strategist string
	Extractor  string
}

type Orchestrator struct {
	chat      ChatClient
	fetcher   Fetcher
	formatter OutputFormatter
	models    Models
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

func NewOrchestrator(chat ChatClient, fetcher Fetcher, formatter OutputFormatter, models Models, logger *slog.Logger) (*Orchestrator, error) {
	schema, err := compileLedgerSchema()
	if err != nil {
		return nil, fmt.Errorf("compile ledger schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		chat:      chat,
		fetcher:   fetcher,
		formatter: formatter,
		models:    models,
		schema:    schema,
		logger:    logger,
	}, nil
}

// Run executes the pipeline for one claimed job and returns the final result.
// Errors from the parse, profile, research, and generate stages are the job's
// terminal failure; fact extraction, verification, and formatting degrade.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job) (*job.Result, error) {
	log := o.logger.With("job_id", j.ID)

	// Stage: parse.
	resumeText, err := o.timed(log, "parse", func() (string, error) {
		return document.Parse([]byte(j.ResumeContent), document.Format(j.ResumeFormat))
	})
	if err != nil {
		return nil, fmt.Errorf("stage parse: %w", err)
	}

	// Stage: profile.
	profile, err := o.timed(log, "profile", func() (string, error) {
		return o.chat.Execute(ctx, ServiceProfiler, ai.Request{
			Model:       pick(j.ProfilerModel, o.models.Profiler),
			System:      profilerSystemPrompt,
			User:        resumeText,
			Temperature: 0.7,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("stage profile: %w", err)
	}

	// Stage: research. The job description is resolved first if it is a URL.
	research, err := o.timed(log, "research", func() (string, error) {
		jd := j.JobDescription
		if j.IsJobDescriptionURL {
			fetched, err := o.fetcher.Fetch(ctx, jd)
			if err != nil {
				return "", err
			}
			jd = fetched
		}
		return o.chat.Execute(ctx, ServiceResearcher, ai.Request{
			Model:       pick(j.ResearcherModel, o.models.Researcher),
			System:      researcherSystemPrompt,
			User:        jd,
			Temperature: 0.7,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("stage research: %w", err)
	}

	// Stage: fact extraction. Failure degrades to an empty ledger so the
	// job proceeds with verification disabled.
	ledger := o.extractLedger(ctx, log, j, resumeText)

	// Stage: generate.
	generated, err := o.timed(log, "generate", func() (string, error) {
		return o.chat.Execute(ctx, ServiceStrategist, ai.Request{
			Model:       pick(j.StrategistModel, o.models.Strategist),
			System:      strategistSystemPrompt(j.OptimizationPreset),
			User:        generateUserPrompt(profile, research, resumeText, ledger),
			Temperature: 0.7,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("stage generate: %w", err)
	}

	// Stage: verify. Skipped for an empty ledger; failure keeps the
	// unverified text.
	final := o.verify(ctx, log, generated, ledger)

	// Stage: format. Failure falls back to plain text.
	return o.format(ctx, log, j, final), nil
}

func (o *Orchestrator) extractLedger(ctx context.Context, log *slog.Logger, j *job.Job, resumeText string) Ledger {
	raw, err := o.timed(log, "fact_extract", func() (string, error) {
		return o.chat.Execute(ctx, ServiceExtractor, ai.Request{
			Model:       pick(j.ProfilerModel, o.models.Extractor),
			System:      extractorSystemPrompt,
			User:        resumeText,
			Temperature: 0.0,
		})
	})
	if err != nil {
		log.Warn("fact extraction failed, continuing with empty ledger", "error", err)
		return Ledger{}
	}
	ledger, err := parseLedger(o.schema, raw)
	if err != nil {
		log.Warn("ledger rejected, continuing with empty ledger", "error", err)
		return Ledger{}
	}
	return ledger
}

func (o *Orchestrator) verify(ctx context.Context, log *slog.Logger, generated string, ledger Ledger) string {
	if ledger.Empty() {
		log.Info("skipping verification, ledger is empty")
		return generated
	}
	corrected, err := o.timed(log, "verify", func() (string, error) {
		return o.chat.Execute(ctx, ServiceVerifier, ai.Request{
			Model:       o.models.Extractor,
			System:      verifierSystemPrompt,
			User:        verifyUserPrompt(generated, ledger),
			Temperature: 0.0,
		})
	})
	if err != nil {
		log.Warn("verification failed, returning unverified resume", "error", err)
		return generated
	}
	return corrected
}

func (o *Orchestrator) format(ctx context.Context, log *slog.Logger, j *job.Job, text string) *job.Result {
	target := document.Format(j.OutputFormat)
	if target == "" || target == document.FormatText {
		return &job.Result{Text: text, MIMEType: document.MIMEText}
	}

	start := time.Now()
	formatted, mime, err := o.formatter.Format(ctx, text, target)
	observability.StageDuration.WithLabelValues("format").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("formatting failed, falling back to plain text",
			"target", target, "error", err)
		return &job.Result{Text: text, MIMEType: document.MIMEText}
	}
	log.Info("stage complete", "stage", "format", "target", target,
		"duration_ms", time.Since(start).Milliseconds())
	return &job.Result{Text: text, Formatted: formatted, MIMEType: mime}
}

// timed runs one stage, logging its duration and outcome and feeding the
// stage histogram.
func (o *Orchestrator) timed(log *slog.Logger, stage string, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	elapsed := time.Since(start)
	observability.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		log.Error("stage failed", "stage", stage, "duration_ms", elapsed.Milliseconds(), "error", err)
		return "", err
	}
	log.Info("stage complete", "stage", stage, "duration_ms", elapsed.Milliseconds(), "chars", len(out))
	return out, nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
