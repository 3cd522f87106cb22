// Package health runs named checks on an interval and reports the service's
// overall state.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the health of one check or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultInterval is the check period used when none is given.
const DefaultInterval = 30 * time.Second

// CheckFunc reports a failing component as a non-nil error.
type CheckFunc func(ctx context.Context) error

// Check is the last result of one named check.
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	LastCheck time.Time     `json:"last_check"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	// Critical checks make the service unhealthy; others only degrade it.
	Critical bool `json:"critical"`

	fn CheckFunc
}

// Monitor runs registered checks periodically.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]*Check
	logger   *logrus.Logger
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor. interval <= 0 uses DefaultInterval.
func NewMonitor(logger *logrus.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		checks:   make(map[string]*Check),
		logger:   logger,
		interval: interval,
		timeout:  10 * time.Second,
	}
}

// AddCheck registers a check. A critical check failing makes the service
// unhealthy; a non-critical one only degrades it.
func (m *Monitor) AddCheck(name string, critical bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = &Check{Name: name, Status: StatusHealthy, Critical: critical, fn: fn}
	m.logger.WithField("check", name).Info("Added health check")
}

// Start runs every check now and then on each tick until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)
	m.logger.Info("Health monitor started")
}

// Stop ends the check loop and waits for it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("Health monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.RunChecks(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunChecks(ctx)
		}
	}
}

// RunChecks runs every check concurrently and waits for all of them.
func (m *Monitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checks := make([]*Check, 0, len(m.checks))
	for _, c := range m.checks {
		checks = append(checks, c)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func(c *Check) {
			defer wg.Done()
			m.run(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (m *Monitor) run(ctx context.Context, c *Check) {
	if c.fn == nil {
		return
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := c.fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	c.LastCheck = start
	c.Duration = time.Since(start)
	old := c.Status
	if err != nil {
		c.Status = StatusUnhealthy
		c.Error = err.Error()
		if old != StatusUnhealthy {
			m.logger.WithError(err).WithField("check", c.Name).Error("Health check failed")
		}
		return
	}
	c.Status = StatusHealthy
	c.Error = ""
	if old != StatusHealthy {
		m.logger.WithField("check", c.Name).Info("Health check recovered")
	}
}

// Checks returns a copy of every check's last result, sorted by name.
func (m *Monitor) Checks() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		cp := *c
		cp.fn = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Overall is unhealthy when a critical check fails and degraded when any
// other check fails.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := StatusHealthy
	for _, c := range m.checks {
		if c.Status != StatusUnhealthy {
			continue
		}
		if c.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
