package pipeline

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/examconv/internal/answer"
	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/llm"
	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/dgallion1/examconv/internal/parser"
	"github.com/dgallion1/examconv/internal/prompt"
	"github.com/dgallion1/examconv/internal/repair"
	"github.com/dgallion1/examconv/internal/signal"
)

// ErrNoText is returned when a file yields no non-empty lines.
var ErrNoText = eris.New("no text extracted")

// Options tune a Runner.
type Options struct {
	Parser              parser.Options
	MaxPromptTokens     int
	MaxConcurrentFiles  int
	MaxRepairs          int
	MaxTransportRetries int
	Backoff             func(attempt int) time.Duration
	TracerProvider      trace.TracerProvider // defaults to the global provider
}

// Input is one uploaded file.
type Input struct {
	Filename string
	Data     []byte
}

// FileResult is everything produced for one file, including debug detail.
type FileResult struct {
	Filename      string                   `json:"filename"`
	ContentHash   string                   `json:"content_hash"`
	Category      string                   `json:"category"`
	Signal        *signal.DocumentSignal   `json:"signal,omitempty"`
	Detections    map[int]answer.Detection `json:"detections,omitempty"`
	Outcome       *repair.Outcome          `json:"outcome,omitempty"`
	Questions     []exam.Question          `json:"questions"`
	DecodeFailure bool                     `json:"decode_failure"`
	Err           *FileError               `json:"error,omitempty"`
	Duration      time.Duration            `json:"duration"`
}

// Valid reports whether the file ended with validated questions.
func (r *FileResult) Valid() bool {
	return r.Err == nil && r.Outcome != nil && r.Outcome.Valid() && len(r.Questions) > 0
}

// LineCount is the size of the file's signal, the bound for source refs.
func (r *FileResult) LineCount() int {
	if r.Signal == nil {
		return 0
	}
	return r.Signal.LineCount()
}

// Runner converts files into validated questions.
type Runner struct {
	gen    llm.Generator
	opts   Options
	log    *zap.Logger
	tracer trace.Tracer
}

// NewRunner builds a Runner. logger may be nil.
func NewRunner(gen llm.Generator, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPromptTokens <= 0 {
		opts.MaxPromptTokens = prompt.DefaultMaxPromptTokens
	}
	if opts.MaxConcurrentFiles <= 0 {
		opts.MaxConcurrentFiles = 4
	}
	if opts.MaxRepairs <= 0 {
		opts.MaxRepairs = repair.MaxRepairs
	}
	if opts.MaxTransportRetries <= 0 {
		opts.MaxTransportRetries = repair.MaxTransportRetries
	}
	if opts.Backoff == nil {
		opts.Backoff = repair.Backoff
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runner{
		gen:    gen,
		opts:   opts,
		log:    logger,
		tracer: tp.Tracer("github.com/dgallion1/examconv/internal/pipeline"),
	}
}

// Signal parses a file and extracts its signal without calling a generator.
func (r *Runner) Signal(ctx context.Context, filename string, data []byte) (*signal.DocumentSignal, error) {
	_, span := r.tracer.Start(ctx, "pipeline.signal", trace.WithAttributes(attribute.String("file", filename)))
	defer span.End()

	p, err := parser.ForFile(filename, r.opts.Parser)
	if err != nil {
		return nil, fail(span, err)
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fail(span, eris.Wrap(err, "parse"))
	}
	sig := signal.FromDocument(filename, doc)
	span.SetAttributes(attribute.Int("lines", sig.LineCount()))
	if sig.LineCount() == 0 {
		return sig, fail(span, ErrNoText)
	}
	return sig, nil
}

// ProcessFile runs parse, signal, detect, assemble, repair, finalize and
// reconcile for one file. It never panics on bad input; failures land in
// the result's Err.
func (r *Runner) ProcessFile(ctx context.Context, filename string, data []byte, category string) *FileResult {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.file", trace.WithAttributes(
		attribute.String("file", filename),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	log := r.log.With(zap.String("file", filename))
	res := &FileResult{
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		Category:    category,
		Questions:   []exam.Question{},
	}
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			span.SetStatus(codes.Error, string(res.Err.Kind))
		}
	}()

	sig, err := r.Signal(ctx, filename, data)
	res.Signal = sig
	if sig != nil {
		res.DecodeFailure = normalize.Warnings(sig.Warnings).Has(normalize.DecodeWarning)
		if res.DecodeFailure {
			log.Warn("text decoding left replacement characters", zap.String("kind", string(DecodeFailure)))
		}
	}
	if err != nil {
		res.Err = classify(filename, err)
		log.Error("signal extraction failed", zap.Error(err))
		return res
	}
	log.Info("signal extracted",
		zap.Int("lines", sig.LineCount()),
		zap.Int("question_starts", sig.DebugCounts.QuestionStarts),
		zap.Int("option_lines", sig.DebugCounts.OptionLines),
		zap.Int("answer_key_entries", sig.DebugCounts.AnswerKeyEntries))

	res.Detections = answer.DetectAll(sig)

	payload, err := prompt.Assemble(sig, category, prompt.Options{MaxPromptTokens: r.opts.MaxPromptTokens})
	if err != nil {
		res.Err = classify(filename, err)
		log.Error("prompt assembly failed", zap.Error(err))
		return res
	}

	rctx, rspan := r.tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(
		attribute.String("generator", r.gen.Name()),
		attribute.Int("prompt_tokens", payload.Tokens),
	))
	rep := &repair.Repairer{
		Generator:           r.gen,
		MaxRepairs:          r.opts.MaxRepairs,
		MaxTransportRetries: r.opts.MaxTransportRetries,
		Backoff:             r.opts.Backoff,
		Logger:              log,
	}
	outcome := rep.Run(rctx, payload, sig.LineCount())
	rspan.SetAttributes(
		attribute.String("state", string(outcome.State)),
		attribute.Int("repair_attempts", outcome.RepairAttempts),
		attribute.Int("transport_retries", outcome.TransportRetries),
	)
	if outcome.Err != nil {
		fail(rspan, outcome.Err)
	}
	rspan.End()

	res.Outcome = outcome
	if !outcome.Valid() {
		res.Err = classify(filename, outcome.Err)
		log.Error("generation failed", zap.String("kind", string(res.Err.Kind)), zap.Error(outcome.Err))
		return res
	}

	if res.Category == "" {
		res.Category = outcome.Response.Category
	}
	res.Questions = answer.Reconcile(exam.Finalize(outcome.Response), res.Detections)
	log.Info("file converted",
		zap.Int("questions", len(res.Questions)),
		zap.Int("repair_attempts", outcome.RepairAttempts),
		zap.Int("transport_retries", outcome.TransportRetries))
	return res
}

// ProcessBatch converts files independently with bounded parallelism.
// Results keep input order; one file's failure never affects another.
func (r *Runner) ProcessBatch(ctx context.Context, files []Input, category string) []*FileResult {
	results := make([]*FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrentFiles)

	r.log.Info("processing batch",
		zap.Int("files", len(files)),
		zap.Int("concurrency", r.opts.MaxConcurrentFiles))
	for i, f := range files {
		g.Go(func() error {
			results[i] = r.ProcessFile(gctx, f.Filename, f.Data, category)
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()
	return results
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
