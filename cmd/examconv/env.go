package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/examconv/internal/config"
	"github.com/dgallion1/examconv/internal/llm"
	"github.com/dgallion1/examconv/internal/observability"
	"github.com/dgallion1/examconv/internal/parser"
	"github.com/dgallion1/examconv/internal/pipeline"
)

// env holds the collaborators shared by serve and convert.
type env struct {
	Runner *pipeline.Runner
	Stats  *llm.Stats

	gen             *llm.Limited
	shutdownTracing func(context.Context) error
}

func runnerOptions(c *config.Config) pipeline.Options {
	return pipeline.Options{
		Parser:              parser.Options{PDFFallbackPdftotext: c.Parser.PDFFallbackPdftotext},
		MaxPromptTokens:     c.Pipeline.MaxPromptTokens,
		MaxConcurrentFiles:  c.Pipeline.MaxConcurrentFiles,
		MaxRepairs:          c.Pipeline.MaxRepairs,
		MaxTransportRetries: c.Pipeline.MaxTransportRetries,
	}
}

func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, logger, observability.TracingConfig{
		Enabled:     cfg.Trace.Enabled,
		ServiceName: "examconv",
		Version:     version,
		SampleRatio: cfg.Trace.SampleRatio,
	})
	if err != nil {
		return nil, err
	}

	stats := llm.NewStats(cfg.LLM.Provider, time.Hour)
	gen, err := llm.New(ctx, llm.Config{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		Project:           cfg.LLM.Project,
		Region:            cfg.LLM.Region,
		Script:            cfg.LLM.Script,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxTokens:         cfg.LLM.MaxTokens,
	}, stats)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	logger.Info("generator ready",
		zap.String("provider", gen.Name()),
		zap.Float64("requests_per_second", cfg.LLM.RequestsPerSecond),
		zap.Duration("timeout", cfg.LLM.Timeout))

	return &env{
		Runner:          pipeline.NewRunner(gen, runnerOptions(cfg), logger),
		Stats:           stats,
		gen:             gen,
		shutdownTracing: shutdown,
	}, nil
}

// Close flushes spans and releases the generator.
func (e *env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdownTracing(ctx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	if err := e.gen.Close(); err != nil {
		logger.Warn("generator close", zap.Error(err))
	}
}
