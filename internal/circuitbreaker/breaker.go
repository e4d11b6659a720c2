// Package circuitbreaker stops calls to a backend that keeps failing.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	Closed   State = iota // calls pass through
	Open                  // calls are rejected immediately
	HalfOpen              // one probe call is in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureFilter sets the predicate deciding which errors count as
// backend failures. Errors it rejects are returned but leave the breaker
// state alone.
func WithFailureFilter(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithStateChange registers a callback invoked, outside the lock, on
// every transition.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	maxFailures     int
	resetTimeout    time.Duration
	lastFailureTime time.Time
	probing         bool

	isFailure func(error) bool
	onChange  func(from, to State)
	now       func() time.Time
}

// New creates a Breaker that opens after maxFailures consecutive failures
// and lets a single probe through once resetTimeout has elapsed.
func New(maxFailures int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	b := &Breaker{
		state:        Closed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		isFailure:    func(err error) bool { return err != nil },
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do runs fn through the breaker. A context that is already done is
// returned as is, and one that ends while fn runs leaves the breaker state
// alone: neither says anything about the backend.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.record(err, probe, ctx.Err() != nil)
	return err
}

// admit reports whether the admitted call is the half-open probe.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	var from State
	changed, probe := false, false
	switch b.state {
	case Open:
		if b.now().Sub(b.lastFailureTime) < b.resetTimeout {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from, changed = b.state, true
		b.state = HalfOpen
		b.probing = true
		probe = true
	case HalfOpen:
		if b.probing {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.probing = true
		probe = true
	}
	b.mu.Unlock()

	if changed {
		b.notify(from, HalfOpen)
	}
	return probe, nil
}

func (b *Breaker) record(err error, probe, abandoned bool) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.probing = false
	}

	switch {
	case abandoned:
		// The next call becomes the probe.
	case !probe && b.state != Closed:
		// Admitted before the breaker opened; only the probe decides.
	case err != nil && b.isFailure(err):
		b.failures++
		b.lastFailureTime = b.now()
		if probe || b.failures >= b.maxFailures {
			b.state = Open
		}
	case err == nil || probe:
		b.failures = 0
		b.state = Closed
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

func (b *Breaker) notify(from, to State) {
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// State returns the current state of the breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
