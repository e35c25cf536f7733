package conversation

import (
	"context"
	"log/slog"
	"time"
)

// RetryOption configures a Retry.
type RetryOption func(*Retry)

// WithAttempts sets the total number of attempts, at least one.
func WithAttempts(n int) RetryOption {
	return func(r *Retry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithAttemptTimeout bounds each attempt. Zero means no per-attempt bound.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(r *Retry) {
		r.perAttempt = d
	}
}

// WithBackoff sets the base delay between attempts; it grows linearly.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *Retry) {
		r.backoff = d
	}
}

// WithRetryLogger sets the structured logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retry) {
		r.logger = logger
	}
}

// Retry decorates an Exchanger with bounded attempts and per-attempt
// timeouts. With default options it makes exactly one attempt.
type Retry struct {
	next       Exchanger
	attempts   int
	perAttempt time.Duration
	backoff    time.Duration
	logger     *slog.Logger
}

// NewRetry wraps next.
func NewRetry(next Exchanger, opts ...RetryOption) *Retry {
	r := &Retry{
		next:     next,
		attempts: 1,
		backoff:  250 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "conversation.retry")
	return r
}

// Budget returns the longest an Exchange can take: every attempt running to
// its timeout plus the linear backoff between them. It is zero when attempts
// are unbounded.
func (r *Retry) Budget() time.Duration {
	if r.perAttempt <= 0 {
		return 0
	}
	n := time.Duration(r.attempts)
	return n*r.perAttempt + r.backoff*n*(n-1)/2
}

// Exchange runs next until it succeeds, fails permanently, or attempts run out.
func (r *Retry) Exchange(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt-1)):
			}
		}

		resp, err := r.try(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, err
		}
		if attempt < r.attempts {
			r.logger.Warn("exchange failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return nil, lastErr
}

func (r *Retry) try(ctx context.Context, req Request) (*Response, error) {
	if r.perAttempt <= 0 {
		return r.next.Exchange(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, r.perAttempt)
	defer cancel()
	return r.next.Exchange(ctx, req)
}

var _ Exchanger = (*Retry)(nil)
