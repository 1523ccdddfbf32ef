package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	RabbitURL   string `envconfig:"RABBITMQ_URL" required:"true"`

	APIAddr     string `envconfig:"API_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9091"`

	Worker Worker
	AI     AI
}

type Worker struct {
	Concurrency       int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	MaxJobAttempts    int           `envconfig:"MAX_JOB_ATTEMPTS" default:"3"`
	RetryBackoffBase  time.Duration `envconfig:"JOB_RETRY_BACKOFF_BASE" default:"5s"`
	ProcessingTimeout time.Duration `envconfig:"JOB_PROCESSING_TIMEOUT" default:"5m"`
	ReaperInterval    time.Duration `envconfig:"JOB_REAPER_INTERVAL" default:"30s"`
}

type AI struct {
	BaseURL          string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey           string        `envconfig:"AI_API_KEY" default:""`
	CallTimeout      time.Duration `envconfig:"AI_CALL_TIMEOUT" default:"45s"`
	MaxRetries       int           `envconfig:"AI_MAX_RETRIES" default:"2"`
	RetryBackoffBase time.Duration `envconfig:"AI_RETRY_BACKOFF_BASE" default:"1s"`

	BreakerThreshold    int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
	BreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	ProfilerModel   string `envconfig:"PROFILER_MODEL" default:"gpt-4o-mini"`
	ResearcherModel string `envconfig:"RESEARCHER_MODEL" default:"gpt-4o-mini"`
	StrategistModel string `envconfig:"STRATEGIST_MODEL" default:"gpt-4o"`
	ExtractorModel  string `envconfig:"EXTRACTOR_MODEL" default:"gpt-4o-mini"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
