package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = eris.New("session not found")

// Orchestrator owns the runner and the session store for the server.
type Orchestrator struct {
	runner   *Runner
	sessions *SessionStore
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(runner *Runner, sessions *SessionStore, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{runner: runner, sessions: sessions, log: log}
}

// Start launches the session cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				before := o.sessions.Len()
				o.sessions.Cleanup()
				if evicted := before - o.sessions.Len(); evicted > 0 {
					o.log.Info("expired sessions evicted", zap.Int("count", evicted))
				}
			}
		}
	}()
}

// Stop ends the cleanup loop.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// CreateSession registers a new empty session.
func (o *Orchestrator) CreateSession(category string) *Session {
	s := NewSession(category)
	o.sessions.Put(s)
	o.log.Info("session created", zap.String("session_id", s.ID), zap.String("category", category))
	return s
}

// Session returns a live session.
func (o *Orchestrator) Session(id string) (*Session, error) {
	s := o.sessions.Get(id)
	if s == nil {
		return nil, eris.Wrapf(ErrSessionNotFound, "pipeline: %s", id)
	}
	return s, nil
}

// Submit converts files synchronously and records the results in the session.
func (o *Orchestrator) Submit(ctx context.Context, id string, files []Input) ([]*FileResult, error) {
	s, err := o.Session(id)
	if err != nil {
		return nil, err
	}
	results := o.runner.ProcessBatch(ctx, files, s.Category)
	s.AddResults(results...)
	return results, nil
}

// DeleteSession removes a session and its results.
func (o *Orchestrator) DeleteSession(id string) error {
	if _, err := o.Session(id); err != nil {
		return err
	}
	o.sessions.Delete(id)
	o.log.Info("session deleted", zap.String("session_id", id))
	return nil
}
