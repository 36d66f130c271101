package screenshot

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Backend failing, calls rejected
	stateHalfOpen                     // One trial call allowed
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker stops calling a backend after consecutive failures.
type breaker struct {
	name             string
	failureThreshold int
	openDuration     time.Duration
	now              func() time.Time

	mu          sync.Mutex
	state       circuitState
	failures    int
	lastFailure time.Time
	trial       bool // a half-open trial call is in flight
}

func newBreaker(name string, threshold int, openDuration time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openDuration <= 0 {
		openDuration = 5 * time.Minute
	}
	return &breaker{
		name:             name,
		failureThreshold: threshold,
		openDuration:     openDuration,
		now:              time.Now,
	}
}

// allow returns ErrCircuitOpen while the open period lasts. After it a
// single trial call is let through.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.lastFailure) <= b.openDuration {
			return fmt.Errorf("%w: %s (failures: %d, next retry: %s)", ErrCircuitOpen,
				b.name, b.failures, b.lastFailure.Add(b.openDuration).Format("15:04:05"))
		}
		b.setState(stateHalfOpen)
		b.trial = true
		return nil
	case stateHalfOpen:
		if b.trial {
			return fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, b.name)
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trial = false
	b.setState(stateClosed)
}

// abandon ends a call that produced no verdict on the backend's health, such
// as one cancelled by its caller.
func (b *breaker) abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *breaker) failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	b.trial = false

	if b.state == stateHalfOpen || b.failures >= b.failureThreshold {
		if b.state != stateOpen {
			slog.Warn("screenshot circuit opened",
				"backend", b.name,
				"failures", b.failures,
				"error", err,
			)
		}
		b.state = stateOpen
	}
}

func (b *breaker) setState(s circuitState) {
	if b.state != s {
		slog.Info("screenshot circuit state changed", "backend", b.name, "from", b.state.String(), "to", s.String())
	}
	b.state = s
}
