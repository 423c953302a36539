package llm

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limited wraps a Generator with a request rate limit, a per-call timeout
// and latency recording.
type Limited struct {
	next    Generator
	limiter *rate.Limiter
	timeout time.Duration
	stats   *Stats
}

// NewLimited wraps next. A non-positive rps disables the limiter and a
// non-positive timeout disables the per-call deadline. stats may be nil.
func NewLimited(next Generator, rps float64, timeout time.Duration, stats *Stats) *Limited {
	l := &Limited{next: next, timeout: timeout, stats: stats}
	if rps > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return l
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Generate(ctx context.Context, req Request) (Response, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Response{}, eris.Wrap(err, "llm: rate limit wait")
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := l.next.Generate(ctx, req)
	if l.stats != nil {
		l.stats.Record(time.Since(start).Milliseconds(), err != nil)
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	return resp, err
}

// Unwrap returns the wrapped generator.
func (l *Limited) Unwrap() Generator { return l.next }

// Close releases the wrapped generator's connection, if it holds one.
func (l *Limited) Close() error {
	if c, ok := l.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
