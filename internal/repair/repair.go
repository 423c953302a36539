// Package repair drives a generator until its output validates, asking for
// targeted fixes a bounded number of times.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/llm"
	"github.com/dgallion1/examconv/internal/prompt"
)

// State is a step of the repair loop.
type State string

const (
	StateInitial         State = "initial"
	StateValidating      State = "validating"
	StateRepairRequested State = "repair_requested"
	StateValid           State = "valid"
	StateFailed          State = "failed"
)

// ValidationError reports a response that stayed invalid after every
// allowed repair attempt.
type ValidationError struct {
	Attempts   int
	Violations []exam.Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("response invalid after %d repair attempts: %d violations", e.Attempts, len(e.Violations))
}

// TransportError reports a generator call that kept failing.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("generator call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Outcome is the terminal result of one Run or Revalidate.
type Outcome struct {
	State            State                   `json:"state"`
	Response         *exam.CandidateResponse `json:"-"`
	Violations       []exam.Violation        `json:"violations,omitempty"`
	RepairAttempts   int                     `json:"repair_attempts"`
	TransportRetries int                     `json:"transport_retries"`
	RawResponses     []string                `json:"raw_responses,omitempty"`
	Transitions      []State                 `json:"transitions"`
	Err              error                   `json:"-"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Transitions = append(o.Transitions, s)
}

// Valid reports whether the outcome ended in StateValid.
func (o *Outcome) Valid() bool { return o.State == StateValid }

// Repairer runs the generate, validate, repair loop.
type Repairer struct {
	Generator           llm.Generator
	MaxRepairs          int
	MaxTransportRetries int
	Backoff             func(attempt int) time.Duration
	Logger              *zap.Logger
}

// New returns a Repairer with the default budgets.
func New(gen llm.Generator, logger *zap.Logger) *Repairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{
		Generator:           gen,
		MaxRepairs:          MaxRepairs,
		MaxTransportRetries: MaxTransportRetries,
		Backoff:             Backoff,
		Logger:              logger,
	}
}

// Run sends payload to the generator and validates the reply against a
// signal of lineCount lines. Invalid replies trigger at most MaxRepairs
// repair requests. Missing values are never filled in.
func (r *Repairer) Run(ctx context.Context, payload prompt.Payload, lineCount int) *Outcome {
	o := &Outcome{}
	o.enter(StateInitial)
	log := r.logger()

	current := payload
	for {
		raw, err := r.generate(ctx, current, o)
		if err != nil {
			o.Err = err
			o.enter(StateFailed)
			log.Warn("generator call failed", zap.Int("transport_retries", o.TransportRetries), zap.Error(err))
			return o
		}
		o.RawResponses = append(o.RawResponses, raw)

		o.enter(StateValidating)
		resp, violations := check(raw, lineCount)
		if len(violations) == 0 {
			o.Response = resp
			o.Violations = nil
			o.enter(StateValid)
			return o
		}
		o.Violations = violations

		if o.RepairAttempts >= r.MaxRepairs {
			o.Err = &ValidationError{Attempts: o.RepairAttempts, Violations: violations}
			o.enter(StateFailed)
			log.Warn("response failed validation",
				zap.Int("repair_attempts", o.RepairAttempts),
				zap.Int("violations", len(violations)))
			return o
		}

		o.RepairAttempts++
		o.enter(StateRepairRequested)
		log.Info("requesting repair",
			zap.Int("attempt", o.RepairAttempts),
			zap.Int("violations", len(violations)))
		current = payload.Repair(raw, violations)
	}
}

// Revalidate checks manually edited questions with the same constraints.
// No generator is involved.
func Revalidate(questions []exam.Question, lineCount int) *Outcome {
	o := &Outcome{}
	o.enter(StateInitial)
	o.enter(StateValidating)
	if v := exam.ValidateQuestions(questions, lineCount); len(v) > 0 {
		o.Violations = v
		o.Err = &ValidationError{Violations: v}
		o.enter(StateFailed)
		return o
	}
	o.enter(StateValid)
	return o
}

// check decodes and normalizes raw output, then validates it. Decoding
// problems are reported as violations so they can be repaired too.
func check(raw string, lineCount int) (*exam.CandidateResponse, []exam.Violation) {
	resp, err := exam.Decode(raw)
	if err != nil {
		constraint := "must be a single valid JSON object"
		switch {
		case errors.Is(err, exam.ErrEmptyResponse):
			constraint = "must not be empty"
		case strings.Contains(err.Error(), "unknown field"):
			constraint += " with only the schema's keys; " + eris.Cause(err).Error()
		}
		return nil, []exam.Violation{{Path: "$", Constraint: constraint}}
	}
	exam.Normalize(resp)
	return resp, exam.Validate(resp, lineCount)
}

func (r *Repairer) generate(ctx context.Context, p prompt.Payload, o *Outcome) (string, error) {
	req := llm.Request{System: p.System, User: p.User, SchemaName: p.SchemaName, Schema: p.Schema}
	backoff := r.Backoff
	if backoff == nil {
		backoff = Backoff
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &TransportError{Attempts: attempt, Err: err}
		}
		resp, err := r.Generator.Generate(ctx, req)
		if err == nil {
			return resp.Text, nil
		}
		if !llm.IsRetryable(err) || attempt >= r.MaxTransportRetries {
			return "", &TransportError{Attempts: attempt + 1, Err: err}
		}

		o.TransportRetries++
		wait := backoff(attempt)
		r.logger().Warn("retrying generator call",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", &TransportError{Attempts: attempt + 1, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
}

func (r *Repairer) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
