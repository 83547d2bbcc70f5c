// Package resilience guards calls to external AI providers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the state of a Breaker.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cool-down elapses.
	Open
	// HalfOpen lets one probe call through.
	HalfOpen
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

// ErrOpen is returned without calling the guarded function while the
// breaker is open.
var ErrOpen = errors.New("resilience: provider circuit open")

// Settings configures a Breaker.
type Settings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// CoolDown is how long the breaker stays open before a probe is allowed.
	CoolDown time.Duration
	// OnChange, if set, is called with the breaker lock held.
	OnChange func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker. It is safe for
// concurrent use.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed Breaker. Threshold defaults to 5 and
// CoolDown to 30s.
func NewBreaker(s Settings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 5
	}
	if s.CoolDown <= 0 {
		s.CoolDown = 30 * time.Second
	}
	return &Breaker{settings: s, now: time.Now}
}

// Do runs fn unless the breaker is open. A non-nil error from fn counts as
// a failure; context cancellation by the caller does not.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.release(ctx, probe, err)
	return err
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.CoolDown {
		return HalfOpen
	}
	return b.state
}

// Failures reports the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// acquire reports whether the granted call is the half-open probe.
func (b *Breaker) acquire() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.settings.CoolDown {
			return false, ErrOpen
		}
		b.setState(HalfOpen)
		b.probing = true
		return true, nil
	case HalfOpen:
		// One probe at a time.
		if b.probing {
			return false, ErrOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

// release records the outcome of a call. Calls granted while closed that
// finish after the breaker opened do not change its state.
func (b *Breaker) release(ctx context.Context, probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	canceled := err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())

	if probe {
		b.probing = false
		switch {
		case canceled:
			// Stay half-open; the next caller probes.
		case err == nil:
			b.failures = 0
			b.setState(Closed)
		default:
			b.failures++
			b.openedAt = b.now()
			b.setState(Open)
		}
		return
	}

	if b.state != Closed || canceled {
		return
	}
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.settings.Threshold {
		b.openedAt = b.now()
		b.setState(Open)
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.settings.OnChange != nil {
		b.settings.OnChange(from, to)
	}
}
