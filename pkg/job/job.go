package job

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the forward-only lifecycle:
// pending -> processing -> {completed, failed}. A retried job goes back to
// pending, which is the only legal move out of processing besides a terminal
// state.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusPending
	default:
		return false
	}
}

// Job is one end-to-end resume customization request.
type Job struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Status  Status `json:"status"`

	ResumeContent       string `json:"resume_content"`
	ResumeFormat        string `json:"resume_format"`
	JobDescription      string `json:"job_description"`
	IsJobDescriptionURL bool   `json:"is_job_description_url"`
	OutputFormat        string `json:"output_format"`
	OptimizationPreset  string `json:"optimization_preset"`
	ProfilerModel       string `json:"profiler_model"`
	ResearcherModel     string `json:"researcher_model"`
	StrategistModel     string `json:"strategist_model"`

	Attempts int    `json:"attempts"`
	Result   string `json:"result"`
	Error    string `json:"error"`

	FormattedResult []byte `json:"-"`
	ResultMIME      string `json:"result_mime"`

	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ProcessingDeadline *time.Time `json:"-"`
}

// SubmissionRequest is the payload accepted by POST /resume/customize.
type SubmissionRequest struct {
	OwnerID             string `json:"ownerId"`
	ResumeContent       string `json:"resumeContent"`
	ResumeFormat        string `json:"resumeFormat"`
	JobDescription      string `json:"jobDescription"`
	IsJobDescriptionURL bool   `json:"isJobDescriptionUrl"`
	OutputFormat        string `json:"outputFormat,omitempty"`
	OptimizationPreset  string `json:"optimizationPreset,omitempty"`
	ProfilerModel       string `json:"profilerModel,omitempty"`
	ResearcherModel     string `json:"researcherModel,omitempty"`
	StrategistModel     string `json:"strategistModel,omitempty"`
}

// Result is the terminal success payload of one job execution.
type Result struct {
	Text      string
	Formatted []byte
	MIMEType  string
}

// StageResult records one pipeline stage outcome. It lives only for the
// duration of a single execution.
type StageResult struct {
	Stage    string
	Content  string
	Duration time.Duration
}

// StatusResponse is the read-only view served by GET /resume/status/{jobId}.
type StatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      Status     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
