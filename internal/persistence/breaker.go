package persistence

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrBreakerOpen is returned while the breaker rejects writes.
var ErrBreakerOpen = errors.New("persistence circuit breaker is open")

// BreakerConfig tunes when storage writes are short-circuited.
type BreakerConfig struct {
	MaxFailures      int           // consecutive failures before opening
	Timeout          time.Duration // time spent open before a trial write
	SuccessThreshold int           // trial successes needed to close again
	Name             string
}

// Breaker stops hammering a failing store. While open every call fails fast
// with ErrBreakerOpen; after Timeout one trial call is let through.
type Breaker struct {
	config BreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker fills unset config fields with defaults.
func NewBreaker(config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Name == "" {
		config.Name = "storage"
	}
	return &Breaker{config: config, logger: logger, now: time.Now}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.config.Timeout {
			return false
		}
		b.setState(BreakerHalfOpen)
		b.successes = 0
		return true
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		b.lastFailure = b.now()
		switch b.state {
		case BreakerClosed:
			if b.failures >= b.config.MaxFailures {
				b.setState(BreakerOpen)
			}
		case BreakerHalfOpen:
			b.setState(BreakerOpen)
		}
		return
	}

	b.failures = 0
	b.successes++
	if b.state == BreakerHalfOpen && b.successes >= b.config.SuccessThreshold {
		b.setState(BreakerClosed)
	}
}

func (b *Breaker) setState(state BreakerState) {
	if b.state == state {
		return
	}
	b.logger.WithFields(logrus.Fields{
		"breaker":  b.config.Name,
		"from":     b.state.String(),
		"to":       state.String(),
		"failures": b.failures,
	}).Warn("Circuit breaker state changed")
	b.state = state
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
