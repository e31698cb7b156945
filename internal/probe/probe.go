// Package probe waits for the service under test to accept requests.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/streakgate/internal/session"
)

// DefaultPath is a cheap, idempotent endpoint that answers 200 once the
// service is up.
const DefaultPath = "/api/auth/csrf"

// DefaultInterval is the fixed delay between attempts.
const DefaultInterval = time.Second

// Prober polls a readiness endpoint with a fixed interval.
type Prober struct {
	client   *session.Client
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithInterval overrides the delay between attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPath overrides the polled endpoint.
func WithPath(path string) Option {
	return func(p *Prober) {
		if path != "" {
			p.path = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Prober that polls through client.
func New(client *session.Client, opts ...Option) *Prober {
	p := &Prober{
		client:   client,
		path:     DefaultPath,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts is the number of requests AwaitReady issues at most for timeout.
func (p *Prober) MaxAttempts(timeout time.Duration) int {
	if timeout <= 0 {
		return 1
	}
	n := int(timeout / p.interval)
	if timeout%p.interval != 0 {
		n++
	}
	return n + 1
}

// AwaitReady polls until a 2xx answer arrives or timeout elapses. Transport
// errors count as "not ready yet". The deadline is taken from the monotonic
// clock once, so the poll is bounded even when individual calls are slow.
func (p *Prober) AwaitReady(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	attempts := p.MaxAttempts(timeout)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := p.client.Get(ctx, nil, p.path)
		switch {
		case err != nil:
			p.logger.Debug("service not reachable yet", "attempt", attempt, "error", err)
		case resp.OK():
			p.logger.Info("service ready", "attempt", attempt, "status", resp.Status)
			return true
		default:
			p.logger.Debug("service not ready yet", "attempt", attempt, "status", resp.Status)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || attempt == attempts {
			break
		}
		wait := p.interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Warn("readiness poll stopped", "attempt", attempt, "reason", ctx.Err())
			return false
		case <-timer.C:
		}
	}

	p.logger.Warn("service did not become ready", "timeout", timeout, "path", p.path)
	return false
}
