// Package retry re-runs short operations with capped exponential backoff.
//
// Two policies are in use: AwardRetrier for a grant that lost a
// serialization race, and BrokerRetrier for dialing a broker that starts
// after the service.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// marked carries an explicit retry decision made by the operation itself.
type marked struct {
	err   error
	retry bool
}

func (m *marked) Error() string { return m.err.Error() }
func (m *marked) Unwrap() error { return m.err }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retry: true}
}

// Permanent marks err as final: Do returns it unwrapped without retrying,
// whatever the policy's ShouldRetry says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retry: false}
}

func decision(err error) (m *marked, ok bool) {
	ok = errors.As(err, &m)
	return m, ok
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	m, ok := decision(err)
	return ok && m.retry
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	m, ok := decision(err)
	return ok && !m.retry
}

// Policy describes how many times and how far apart an operation is re-run.
type Policy struct {
	// Attempts counts the first call too. Values below 1 mean one call.
	Attempts int

	// Base is the pause after the first failure; it grows by Factor per
	// attempt and never exceeds Cap.
	Base   time.Duration
	Cap    time.Duration
	Factor float64

	// Jitter spreads each pause by ±Jitter of its length.
	Jitter float64

	// ShouldRetry classifies unmarked errors. Nil means only errors
	// marked with Retryable are re-run.
	ShouldRetry func(error) bool

	// OnRetry is called before each pause.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Retrier runs operations under one Policy. Safe for concurrent use.
type Retrier struct {
	policy Policy
	rnd    func() float64
}

// Option adjusts a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of calls.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.Attempts = n
		}
	}
}

// WithInitialDelay sets the first pause.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.Base = d
		}
	}
}

// WithMaxDelay caps every pause.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.Cap = d
		}
	}
}

// WithJitter sets the jitter fraction, 0 to 1.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

// WithRetryIf sets the classifier for unmarked errors.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.ShouldRetry = fn }
}

// WithOnRetry sets the hook called before each pause.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// New builds a Retrier from a three-attempt, 100ms-doubling base policy.
func New(opts ...Option) *Retrier {
	p := Policy{
		Attempts: 3,
		Base:     100 * time.Millisecond,
		Cap:      30 * time.Second,
		Factor:   2,
		Jitter:   0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p, rnd: rand.Float64}
}

// Do calls op until it succeeds, the policy gives up or ctx ends.
// Retryable/Permanent markers are stripped from the returned error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := max(r.policy.Attempts, 1)

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
		last = unmark(err)

		if !r.shouldRetry(err) || attempt >= attempts {
			return last
		}

		wait := r.backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, last, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

func (r *Retrier) shouldRetry(err error) bool {
	if m, ok := decision(err); ok {
		return m.retry
	}
	if r.policy.ShouldRetry != nil {
		return r.policy.ShouldRetry(err)
	}
	return false
}

// backoff returns the pause after the given failed attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	factor := r.policy.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(r.policy.Base) * math.Pow(factor, float64(attempt-1))
	if r.policy.Cap > 0 {
		d = math.Min(d, float64(r.policy.Cap))
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (2*r.rnd() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

func unmark(err error) error {
	if m, ok := err.(*marked); ok {
		return m.err
	}
	return err
}

// Do runs op once under a throwaway Retrier.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData is Do for operations that return a value.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// AwardRetrier re-runs a reward grant once after a short pause, giving the
// competing transaction time to commit.
func AwardRetrier(retryIf func(error) bool, onRetry func(attempt int, err error, wait time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(2),
		WithInitialDelay(25*time.Millisecond),
		WithMaxDelay(250*time.Millisecond),
		WithJitter(0.2),
		WithRetryIf(retryIf),
		WithOnRetry(onRetry),
	)
}

// BrokerRetrier makes five dial attempts spread over several seconds.
func BrokerRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithJitter(0.2),
		WithRetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)
}
