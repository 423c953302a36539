package repair

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/llm"
	"github.com/dgallion1/examconv/internal/prompt"
)

const (
	validJSON = `{"category":"Geography","questions":[{"number":1,"title":"Capital of France?",` +
		`"options":["Paris","Lyon","Nice","Rouen"],"correct_index":0,"detected_answer_method":"answer_key",` +
		`"warnings":[],"source_refs":[0,5]}]}`
	missingIndexJSON = `{"category":"Geography","questions":[{"number":1,"title":"Capital of France?",` +
		`"options":["Paris","Lyon","Nice","Rouen"],"detected_answer_method":"answer_key",` +
		`"warnings":[],"source_refs":[0]}]}`
)

var payload = prompt.Payload{System: "sys", User: "original request", SchemaName: exam.SchemaName}

func newRepairer(gen llm.Generator) *Repairer {
	r := New(gen, nil)
	r.Backoff = func(int) time.Duration { return 0 }
	return r
}

func TestRun_ValidFirstTime(t *testing.T) {
	gen := llm.NewScripted(llm.Step{Text: "```json\n" + validJSON + "\n```"})
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	require.True(t, o.Valid())
	assert.NoError(t, o.Err)
	assert.Equal(t, 0, o.RepairAttempts)
	assert.Equal(t, []State{StateInitial, StateValidating, StateValid}, o.Transitions)
	require.Len(t, o.Response.Questions, 1)
	assert.Equal(t, "Paris", o.Response.Questions[0].Options[0])
	assert.Len(t, o.RawResponses, 1)
}

func TestRun_MissingCorrectIndexRepairedOnce(t *testing.T) {
	gen := llm.NewScripted(llm.Step{Text: missingIndexJSON}, llm.Step{Text: validJSON})
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	require.True(t, o.Valid())
	assert.Equal(t, 1, o.RepairAttempts)
	assert.Equal(t, []State{
		StateInitial, StateValidating, StateRepairRequested, StateValidating, StateValid,
	}, o.Transitions)

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].User, "questions[0].correct_index: is required")
	assert.Contains(t, reqs[1].User, missingIndexJSON)
	assert.Contains(t, reqs[1].User, "original request")
}

func TestRun_FailsAfterTwoRepairsWithoutFabricating(t *testing.T) {
	gen := llm.NewScripted(
		llm.Step{Text: missingIndexJSON},
		llm.Step{Text: missingIndexJSON},
		llm.Step{Text: missingIndexJSON},
		llm.Step{Text: validJSON},
	)
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	assert.Equal(t, StateFailed, o.State)
	assert.Equal(t, 2, o.RepairAttempts)
	assert.Nil(t, o.Response)
	assert.Len(t, gen.Requests(), 3)
	require.NotEmpty(t, o.Violations)
	assert.Equal(t, "questions[0].correct_index", o.Violations[0].Path)

	var verr *ValidationError
	require.True(t, errors.As(o.Err, &verr))
	assert.Equal(t, 2, verr.Attempts)
}

func TestRun_NonJSONIsRepairable(t *testing.T) {
	gen := llm.NewScripted(llm.Step{Text: "Sure! Here are your questions."}, llm.Step{Text: validJSON})
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	require.True(t, o.Valid())
	assert.Equal(t, 1, o.RepairAttempts)
	assert.Contains(t, gen.Requests()[1].User, "$: must be a single valid JSON object")
}

func TestRun_UnknownKeyIsRepairable(t *testing.T) {
	extra := strings.Replace(validJSON, `"category"`, `"explanation":"see above","category"`, 1)
	gen := llm.NewScripted(llm.Step{Text: extra}, llm.Step{Text: validJSON})
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	require.True(t, o.Valid())
	assert.Equal(t, 1, o.RepairAttempts)
	assert.Contains(t, gen.Requests()[1].User, `unknown field "explanation"`)
}

func TestRun_SourceRefOutOfRangeIsViolation(t *testing.T) {
	gen := llm.NewScripted(llm.Step{Text: validJSON}, llm.Step{Text: validJSON}, llm.Step{Text: validJSON})
	o := newRepairer(gen).Run(context.Background(), payload, 3)

	assert.Equal(t, StateFailed, o.State)
	require.Len(t, o.Violations, 1)
	assert.Equal(t, "questions[0].source_refs[1]", o.Violations[0].Path)
}

func TestRun_TransportRetriesDoNotConsumeRepairs(t *testing.T) {
	gen := llm.NewScripted(
		llm.Step{Error: "timeout", Retryable: true},
		llm.Step{Error: "timeout", Retryable: true},
		llm.Step{Text: missingIndexJSON},
		llm.Step{Error: "503", Retryable: true},
		llm.Step{Text: validJSON},
	)
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	require.True(t, o.Valid())
	assert.Equal(t, 3, o.TransportRetries)
	assert.Equal(t, 1, o.RepairAttempts)
}

func TestRun_TransportBudgetExhausted(t *testing.T) {
	steps := make([]llm.Step, 0, 5)
	for i := 0; i < 5; i++ {
		steps = append(steps, llm.Step{Error: "connection refused", Retryable: true})
	}
	gen := llm.NewScripted(steps...)
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	assert.Equal(t, StateFailed, o.State)
	assert.Equal(t, 3, o.TransportRetries)
	assert.Equal(t, 0, o.RepairAttempts)
	assert.Len(t, gen.Requests(), 4)

	var terr *TransportError
	require.True(t, errors.As(o.Err, &terr))
	assert.Equal(t, 4, terr.Attempts)
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	gen := llm.NewScripted(llm.Step{Error: "invalid api key"}, llm.Step{Text: validJSON})
	o := newRepairer(gen).Run(context.Background(), payload, 6)

	assert.Equal(t, StateFailed, o.State)
	assert.Equal(t, 0, o.TransportRetries)
	var terr *TransportError
	assert.True(t, errors.As(o.Err, &terr))
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newRepairer(llm.NewScripted(llm.Step{Text: validJSON})).Run(ctx, payload, 6)

	assert.Equal(t, StateFailed, o.State)
	assert.ErrorIs(t, o.Err, context.Canceled)
}

func TestRevalidate(t *testing.T) {
	q := exam.Question{
		Number: 1, Title: "Capital?", Options: [4]string{"Paris", "Lyon", "Nice", "Rouen"},
		CorrectIndex: 0, Method: exam.MethodAnswerKey, Warnings: []string{}, SourceRefs: []int{0},
	}
	o := Revalidate([]exam.Question{q}, 3)
	assert.True(t, o.Valid())
	assert.Equal(t, []State{StateInitial, StateValidating, StateValid}, o.Transitions)

	q.CorrectIndex = -1
	o = Revalidate([]exam.Question{q}, 3)
	assert.Equal(t, StateFailed, o.State)
	require.Len(t, o.Violations, 1)
	assert.Equal(t, "questions[0].correct_index", o.Violations[0].Path)
	assert.Empty(t, o.RawResponses)
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
	assert.Less(t, Backoff(10), 45*time.Second)
}
