// Package circuitbreaker stops calling a dependency that keeps failing.
// The event forwarder uses it so a dead broker costs one fast error per
// event instead of a full publish timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // a few trial calls decide the next state
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings tune a breaker. Zero values take the defaults noted per field.
type Settings struct {
	Name string

	MaxFailures       int           // consecutive failures that open the circuit, 5
	HalfOpenSuccesses int           // trial successes that close it again, 2
	Cooldown          time.Duration // open period before a trial call, 30s
	HalfOpenCalls     int           // concurrent half-open calls, 1

	// IsFailure decides which errors count against the dependency.
	// Nil counts every error.
	IsFailure func(error) bool

	// OnTransition runs under the breaker lock and must not call back into it.
	OnTransition func(name string, from, to State)
}

func (s *Settings) applyDefaults() {
	if s.MaxFailures <= 0 {
		s.MaxFailures = 5
	}
	if s.HalfOpenSuccesses <= 0 {
		s.HalfOpenSuccesses = 2
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.HalfOpenCalls <= 0 {
		s.HalfOpenCalls = 1
	}
}

// Counts is a snapshot of the breaker's bookkeeping.
type Counts struct {
	State     State
	Failures  int   // current failure streak
	Successes int   // current half-open success streak
	Rejected  int64 // calls that failed fast, since creation
}

// CircuitBreaker is safe for concurrent use. Every state change starts a
// new generation; results of calls admitted in an older generation are
// ignored, so a slow call cannot reopen a circuit that already recovered.
type CircuitBreaker struct {
	set Settings
	now func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	failures   int
	successes  int
	inFlight   int // half-open trial calls running
	openUntil  time.Time
	rejected   int64
}

func New(set Settings) *CircuitBreaker {
	set.applyDefaults()
	return &CircuitBreaker{set: set, now: time.Now}
}

// BrokerBreaker opens after three failed publishes and retries again after
// 15 seconds. A caller's cancellation is not held against the broker.
func BrokerBreaker(onTransition func(name string, from, to State)) *CircuitBreaker {
	return New(Settings{
		Name:              "rabbitmq",
		MaxFailures:       3,
		HalfOpenSuccesses: 1,
		Cooldown:          15 * time.Second,
		IsFailure:         func(err error) bool { return !errors.Is(err, context.Canceled) },
		OnTransition:      onTransition,
	})
}

// Execute runs fn when the circuit admits it and records the outcome.
// Rejected calls return ErrCircuitOpen or ErrTooManyRequests without
// calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.done(gen, err)
	return err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && !cb.now().Before(cb.openUntil) {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.rejected++
		return 0, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.set.HalfOpenCalls {
			cb.rejected++
			return 0, ErrTooManyRequests
		}
		cb.inFlight++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) done(gen uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}
	if cb.state == StateHalfOpen {
		cb.inFlight--
	}

	if err != nil && (cb.set.IsFailure == nil || cb.set.IsFailure(err)) {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.set.MaxFailures {
			cb.transition(StateOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.set.HalfOpenSuccesses {
			cb.transition(StateClosed)
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.generation++
	cb.failures, cb.successes, cb.inFlight = 0, 0, 0
	if to == StateOpen {
		cb.openUntil = cb.now().Add(cb.set.Cooldown)
	}

	if cb.set.OnTransition != nil {
		cb.set.OnTransition(cb.set.Name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	return cb.Counts().State
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:     cb.state,
		Failures:  cb.failures,
		Successes: cb.successes,
		Rejected:  cb.rejected,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.set.Name
}
