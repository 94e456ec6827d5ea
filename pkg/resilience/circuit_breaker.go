package resilience

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"extjob/pkg/metrics"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a reporter stops talking to an unreachable
// CI server.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transport failures that
	// opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before one probe post is
	// let through.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns sensible defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// Breaker skips posts to a CI server that keeps failing at the transport
// level, so a long pipeline does not pay a connect timeout on every step.
// Only one probe is admitted while half-open.
type Breaker struct {
	name   string
	config BreakerConfig
	log    *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	probeActive bool
}

// NewBreaker creates a breaker. A nil logger disables transition logging.
func NewBreaker(name string, config BreakerConfig, log *zap.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig().Cooldown
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		name:   name,
		config: config,
		log:    log.With(zap.String("breaker", name)),
		now:    time.Now,
	}
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// must hold lock
func (b *Breaker) currentState() CircuitState {
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return CircuitHalfOpen
	}
	return b.state
}

// Allow reports whether a post may go out. Every nil return must be followed
// by exactly one Record or Release call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if b.probeActive {
			return ErrCircuitOpen
		}
		b.transition(CircuitHalfOpen)
		b.probeActive = true
	}
	return nil
}

// Record feeds back the transport outcome of an allowed post.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeActive = false
	if err == nil {
		b.failures = 0
		if b.state != CircuitClosed {
			b.transition(CircuitClosed)
		}
		return
	}

	b.failures++
	if b.state == CircuitHalfOpen || b.failures >= b.config.FailureThreshold {
		b.openedAt = b.now()
		b.transition(CircuitOpen)
	}
}

// Release ends an allowed post without counting it either way, for attempts
// abandoned by the caller rather than failed by the server.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeActive = false
}

// Reset resets the circuit breaker to its initial state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeActive = false
	b.transition(CircuitClosed)
}

// must hold lock
func (b *Breaker) transition(to CircuitState) {
	if b.state == to {
		return
	}
	b.log.Info("circuit breaker state changed",
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("failures", b.failures),
	)
	b.state = to
	metrics.SetBreakerOpen(b.name, to == CircuitOpen)
}
