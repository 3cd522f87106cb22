// Package settings holds the chart's display state behind a reducer: a pure
// (state, action) -> state function and a store that queues dispatches.
package settings

import (
	"errors"
	"fmt"

	"github.com/navid-fn/footprint/internal/models"
)

// ErrInvalid wraps every action the reducer rejects.
var ErrInvalid = errors.New("invalid action")

// State is the UI-facing chart state.
type State struct {
	Settings models.Settings         `json:"settings"`
	Tool     models.Tool             `json:"tool"`
	Status   models.ConnectionStatus `json:"status"`
}

// DefaultState is the state of a fresh chart.
func DefaultState() State {
	return State{
		Settings: models.DefaultSettings(),
		Tool:     models.ToolSelect,
		Status:   models.StatusDisconnected,
	}
}

// Action is a tagged state mutation.
type Action interface {
	Name() string
}

// UpdateSettings merges a partial settings change.
type UpdateSettings struct {
	Patch models.SettingsPatch
}

// ReplaceSettings swaps in a full settings value, e.g. after a restore.
type ReplaceSettings struct {
	Settings models.Settings
}

// ResetSettings restores the defaults, keeping the instrument.
type ResetSettings struct{}

// SetTool changes the active interaction tool.
type SetTool struct {
	Tool models.Tool
}

// SetStatus records the feed connection status.
type SetStatus struct {
	Status models.ConnectionStatus
}

func (UpdateSettings) Name() string  { return "update_settings" }
func (ReplaceSettings) Name() string { return "replace_settings" }
func (ResetSettings) Name() string   { return "reset_settings" }
func (SetTool) Name() string         { return "set_tool" }
func (SetStatus) Name() string       { return "set_status" }

// Reduce applies a to s. Invalid actions leave s unchanged and return an error.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case UpdateSettings:
		next := a.Patch.Apply(s.Settings)
		if err := next.Validate(); err != nil {
			return s, fmt.Errorf("%w: settings: %w", ErrInvalid, err)
		}
		s.Settings = next
	case ReplaceSettings:
		if err := a.Settings.Validate(); err != nil {
			return s, fmt.Errorf("%w: settings: %w", ErrInvalid, err)
		}
		s.Settings = a.Settings
	case ResetSettings:
		instrument := s.Settings.Instrument
		s.Settings = models.DefaultSettings()
		s.Settings.Instrument = instrument
	case SetTool:
		if _, ok := a.Tool.DrawingType(); !ok && a.Tool != models.ToolSelect {
			return s, fmt.Errorf("%w: unknown tool %q", ErrInvalid, a.Tool)
		}
		s.Tool = a.Tool
	case SetStatus:
		s.Status = a.Status
	default:
		return s, fmt.Errorf("%w: unknown action %T", ErrInvalid, a)
	}
	return s, nil
}
