package health

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestOverall(t *testing.T) {
	failing := func(ctx context.Context) error { return errors.New("down") }
	passing := func(ctx context.Context) error { return nil }

	tests := []struct {
		name     string
		stream   CheckFunc
		storage  CheckFunc
		expected Status
	}{
		{name: "all passing", stream: passing, storage: passing, expected: StatusHealthy},
		{name: "non-critical failing", stream: passing, storage: failing, expected: StatusDegraded},
		{name: "critical failing", stream: failing, storage: passing, expected: StatusUnhealthy},
		{name: "both failing", stream: failing, storage: failing, expected: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(quietLogger(), time.Hour)
			m.AddCheck("stream", true, tt.stream)
			m.AddCheck("storage", false, tt.storage)
			m.RunChecks(context.Background())

			if got := m.Overall(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestChecksSnapshot(t *testing.T) {
	m := NewMonitor(quietLogger(), time.Hour)
	m.AddCheck("storage", false, func(ctx context.Context) error { return errors.New("unreachable") })
	m.AddCheck("stream", true, func(ctx context.Context) error { return nil })
	m.RunChecks(context.Background())

	checks := m.Checks()
	if len(checks) != 2 {
		t.Fatalf("Expected 2 checks, got %d", len(checks))
	}
	if checks[0].Name != "storage" || checks[1].Name != "stream" {
		t.Errorf("Expected checks sorted by name, got %s, %s", checks[0].Name, checks[1].Name)
	}
	if checks[0].Error != "unreachable" || checks[0].Status != StatusUnhealthy {
		t.Errorf("Expected storage unhealthy with error, got %+v", checks[0])
	}
	if checks[1].LastCheck.IsZero() {
		t.Error("Expected the last check time to be set")
	}
}

func TestStartStop(t *testing.T) {
	m := NewMonitor(quietLogger(), 10*time.Millisecond)
	ran := make(chan struct{}, 10)
	m.AddCheck("stream", true, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	m.Start(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected check run %d", i+1)
		}
	}
	m.Stop()
}
