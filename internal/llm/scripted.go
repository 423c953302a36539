package llm

import (
	"context"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Step is one canned generator reply. A non-empty Error is returned as a
// transient failure when Retryable is set and as a permanent one otherwise.
type Step struct {
	Text      string `yaml:"text"`
	Error     string `yaml:"error,omitempty"`
	Retryable bool   `yaml:"retryable,omitempty"`
}

// ErrScriptExhausted is returned once every step has been consumed.
var ErrScriptExhausted = eris.New("llm: script exhausted")

// Scripted replays canned replies in order. It backs tests and offline runs.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScripted returns a generator that replays steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// LoadScript reads a YAML list of steps.
func LoadScript(path string) (*Scripted, error) {
	if path == "" {
		return nil, eris.New("llm: scripted provider needs llm.script")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: read script %s", path)
	}
	var steps []Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, eris.Wrapf(err, "llm: parse script %s", path)
	}
	return NewScripted(steps...), nil
}

func (s *Scripted) Name() string { return ProviderScripted }

func (s *Scripted) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return Response{}, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]

	switch {
	case step.Error != "" && step.Retryable:
		return Response{}, &RetryableError{Message: step.Error}
	case step.Error != "":
		return Response{}, eris.New(step.Error)
	}
	return Response{Text: step.Text, Model: ProviderScripted}, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
