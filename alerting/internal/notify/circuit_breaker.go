package notify

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/metrics"
)

const (
	CLOSED    = 0
	OPEN      = 1
	HALF_OPEN = 2
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	state            int
	failureCount     int
	halfOpenInFlight int
	lastFailureTime  time.Time
	config           config.CircuitBreakerConfig
	mutex            sync.Mutex
	metrics          *metrics.Metrics
	logger           *zap.Logger
	now              func() time.Time
}

func NewCircuitBreaker(configCB config.CircuitBreakerConfig, metrics *metrics.Metrics, logger *zap.Logger) *CircuitBreaker {
	if configCB.FailureThreshold <= 0 {
		configCB.FailureThreshold = 1
	}
	if configCB.HalfOpenMaxRequests <= 0 {
		configCB.HalfOpenMaxRequests = 1
	}

	logger.Info("Circuit breaker initialized",
		zap.Int("threshold", configCB.FailureThreshold),
		zap.Int("timeout_seconds", configCB.TimeoutDuration),
		zap.Int("half_open", configCB.HalfOpenMaxRequests))

	metrics.SetCircuitBreakerState(CLOSED)

	return &CircuitBreaker{
		state:   CLOSED,
		config:  configCB,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute runs fn unless the breaker is open. Failures returned by fn count
// towards opening the breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.acquire() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) State() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetFailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failureCount
}

// acquire decides whether a request may go through, moving OPEN to HALF_OPEN
// once the timeout has elapsed.
func (cb *CircuitBreaker) acquire() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case CLOSED:
		return true
	case OPEN:
		timeout := time.Duration(cb.config.TimeoutDuration) * time.Second
		if cb.now().Sub(cb.lastFailureTime) < timeout {
			return false
		}
		cb.setState(HALF_OPEN)
		cb.halfOpenInFlight = 1
		return true
	case HALF_OPEN:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxRequests {
			return false
		}
		cb.halfOpenInFlight++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CLOSED:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(OPEN)
			cb.logger.Warn("Circuit breaker opened",
				zap.Int("failures", cb.failureCount),
				zap.Int("threshold", cb.config.FailureThreshold))
		}
	case HALF_OPEN:
		cb.halfOpenInFlight = 0
		cb.setState(OPEN)
		cb.logger.Warn("Circuit breaker reopened from HALF_OPEN state")
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	if cb.state == HALF_OPEN {
		cb.halfOpenInFlight = 0
		cb.setState(CLOSED)
		cb.logger.Info("Circuit breaker closed (recovered)")
	}
}

func (cb *CircuitBreaker) setState(state int) {
	cb.state = state
	cb.metrics.SetCircuitBreakerState(float64(state))
}
