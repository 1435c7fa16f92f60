// Package retry runs an operation again with capped exponential backoff.
// The server uses it to wait for Postgres at startup and to poll a held Redis
// user lock. Request handling never retries domain errors.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERMANENT ERRORS
// ══════════════════════════════════════════════════════════════════════════════

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do returns it at once. Do hands back the unmarked error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy describes how often and how long to retry.
type Policy struct {
	// Attempts counts the first call too.
	Attempts int

	// Base is the wait after the first failure. Each later wait grows by Factor up to Cap.
	Base   time.Duration
	Cap    time.Duration
	Factor float64

	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64

	// ShouldRetry filters errors; nil retries anything not marked Permanent.
	ShouldRetry func(error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Option adjusts a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.Attempts = n
		}
	}
}

// WithBackoff sets the first wait, the growth factor and the cap.
func WithBackoff(base, ceiling time.Duration, factor float64) Option {
	return func(p *Policy) {
		if base > 0 {
			p.Base = base
		}
		if ceiling >= base && ceiling > 0 {
			p.Cap = ceiling
		}
		if factor >= 1 {
			p.Factor = factor
		}
	}
}

// WithJitter sets the jitter fraction, between 0 and 1.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

// WithRetryIf sets the error filter.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.ShouldRetry = fn }
}

// WithOnRetry sets the hook called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier runs operations under one Policy. It is safe for concurrent use.
type Retrier struct {
	policy Policy
}

// New builds a Retrier: three attempts, 100ms doubling to 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	p := Policy{Attempts: 3, Base: 100 * time.Millisecond, Cap: 30 * time.Second, Factor: 2, Jitter: 0.1}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Do calls op until it succeeds, fails with an error the policy does not retry,
// runs out of attempts, or ctx ends. It returns op's last error, or ctx's error if
// op never ran.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		last = err
		if attempt >= r.policy.Attempts || !r.retryable(err) {
			return err
		}

		wait := r.wait(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
}

func (r *Retrier) retryable(err error) bool {
	if r.policy.ShouldRetry == nil {
		return true
	}
	return r.policy.ShouldRetry(err)
}

// wait returns the pause after the given failed attempt.
func (r *Retrier) wait(attempt int) time.Duration {
	d := float64(r.policy.Base)
	for i := 1; i < attempt && d < float64(r.policy.Cap); i++ {
		d *= r.policy.Factor
	}
	if d > float64(r.policy.Cap) {
		d = float64(r.policy.Cap)
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(max(d, 0))
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// ConnectRetrier waits for a backing store at startup. Errors marked Permanent,
// such as rejected credentials, end the wait at once; the caller bounds it with ctx.
func ConnectRetrier(onRetry func(attempt int, err error, wait time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(6),
		WithBackoff(250*time.Millisecond, 5*time.Second, 2),
		WithJitter(0.2),
		WithOnRetry(onRetry),
	)
}

// LockRetrier polls a held lock for about maxWait, retrying only errors isHeld accepts.
func LockRetrier(maxWait time.Duration, isHeld func(error) bool) *Retrier {
	const poll = 25 * time.Millisecond
	attempts := max(int(maxWait/poll)+1, 2)
	return New(
		WithMaxAttempts(attempts),
		WithBackoff(poll, 4*poll, 1.2),
		WithJitter(0.3),
		WithRetryIf(isHeld),
	)
}
