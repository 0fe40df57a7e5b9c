// Package core defines the interfaces shared between the speak-service components.
package core

import "context"

// SettingsStore defines the interface for a key-value settings backend.
// Get reports found=false for keys that were never written.
type SettingsStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// SelectionSource yields the text the user currently has selected.
type SelectionSource interface {
	Selection(ctx context.Context) (string, error)
}

// Notifier surfaces messages to the user. Notify is passive (a notification),
// Alert demands attention, such as an error dialog.
type Notifier interface {
	Notify(title, message string)
	Alert(message string)
}

// IndicatorState is the visible status shown on the extension badge.
type IndicatorState int

const (
	// StateIdle means credentials are set and nothing is playing.
	StateIdle IndicatorState = iota
	// StateSetupNeeded means the API key or region is missing.
	StateSetupNeeded
	// StateSpeaking means audio is currently playing.
	StateSpeaking
)

// String returns the badge text for the state.
func (s IndicatorState) String() string {
	switch s {
	case StateSetupNeeded:
		return "!"
	case StateSpeaking:
		return "speaking"
	case StateIdle:
		return ""
	default:
		return "unknown"
	}
}

// Indicator renders an IndicatorState.
type Indicator interface {
	SetState(state IndicatorState)
}
