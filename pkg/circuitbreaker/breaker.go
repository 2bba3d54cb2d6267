package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration
	Logger  *zap.Logger
	// now is overridable in tests.
	now func() time.Time
}

// CircuitBreaker short-circuits calls to a failing dependency. In the
// half-open state exactly one trial call is let through.
type CircuitBreaker struct {
	name      string
	threshold int
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool
}

func New(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: cfg.FailureThreshold,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		now:       cfg.now,
	}
	if cb.threshold <= 0 {
		cb.threshold = 5
	}
	if cb.timeout <= 0 {
		cb.timeout = 30 * time.Second
	}
	if cb.logger == nil {
		cb.logger = zap.NewNop()
	}
	if cb.now == nil {
		cb.now = time.Now
	}
	return cb
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	success := false
	defer func() {
		cb.after(success)
	}()

	err := fn()
	success = err == nil
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.trialing {
			return ErrCircuitOpen
		}
		cb.trialing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialing = false
		if success {
			cb.failures = 0
			cb.setState(StateClosed)
		} else {
			cb.open()
		}
		return
	}

	if success {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.threshold {
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
		zap.Int("failures", cb.failures),
	)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		return StateHalfOpen
	}
	return cb.state
}
