// Package llm holds the generation backends that turn an assembled prompt
// into candidate JSON.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Request is one structured-output generation call.
type Request struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Response is the raw text returned by a backend.
type Response struct {
	Text     string
	Model    string
	Duration time.Duration
}

// Generator produces candidate JSON for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderVertex    = "vertex"
	ProviderScripted  = "scripted"
)

// Default models per provider.
var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-5.2",
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderVertex:    "gemini-1.5-pro",
}

// Config selects and tunes a backend.
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	Project           string
	Region            string
	Script            string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxTokens         int
}

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = eris.New("llm: unknown provider")

// New builds the configured backend wrapped with rate limiting, a per-call
// timeout and latency recording into stats.
func New(ctx context.Context, cfg Config, stats *Stats) (*Limited, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}

	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		gen = NewOpenAI(cfg.APIKey, model, cfg.MaxTokens)
	case ProviderAnthropic:
		gen = NewAnthropic(cfg.APIKey, model, cfg.MaxTokens)
	case ProviderVertex:
		gen, err = NewVertex(ctx, cfg.Project, cfg.Region, model, cfg.MaxTokens)
	case ProviderScripted:
		gen, err = LoadScript(cfg.Script)
	default:
		return nil, eris.Wrapf(ErrUnknownProvider, "llm: %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(gen, cfg.RequestsPerSecond, cfg.Timeout, stats), nil
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// transient classifies an SDK failure. Rate limiting, server errors, network
// errors and per-call timeouts become a RetryableError.
func transient(err error, status int, op string) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return &RetryableError{StatusCode: status, Message: err.Error()}
	}
	var netErr net.Error
	if status == 0 && (errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)) {
		return &RetryableError{Message: err.Error()}
	}
	return eris.Wrap(err, op)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
