// Package ai wraps a chat-completion provider with per-call timeouts,
// retry-with-backoff, and the shared circuit breaker registry.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"resume-tailor/pkg/errs"
)

// Request is one logical chat completion.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Provider issues a single chat completion attempt. Implementations map
// transport and HTTP failures onto the errs variants.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat/completions endpoint
// (OpenAI, Azure, Together, local Ollama /v1, ...).
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	reqID := uuid.New().String()
	start := time.Now()

	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Parsing("encode completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errs.Network("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	p.logger.Debug("ai.http.request", "req_id", reqID, "model", req.Model, "content_length", len(body))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", errs.Timeout("completion call timed out", err)
		}
		return "", errs.Network("completion call failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	p.logger.Debug("ai.http.response",
		"req_id", reqID, "status", resp.StatusCode, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	if err := statusToError(resp, raw); err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", errs.Network("decode completion response", err)
	}
	if len(cc.Choices) == 0 {
		return "", errs.UpstreamServer(resp.StatusCode, "no choices in completion response")
	}
	return cc.Choices[0].Message.Content, nil
}

func statusToError(resp *http.Response, raw []byte) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return errs.RateLimited(parseRetryAfter(resp.Header.Get("Retry-After")))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.Unauthorized(code)
	case code >= 500:
		return errs.UpstreamServer(code, truncate(raw, 200))
	default:
		return errs.UpstreamClient(code, truncate(raw, 200))
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return fmt.Sprintf("%s...", b[:n])
	}
	return string(b)
}
