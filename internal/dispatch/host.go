package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/core"
	"github.com/book-expert/speak-service/internal/settings"
)

// StaticSelection is a selection that is already known, such as the text a
// context-menu click carries.
type StaticSelection string

// Selection implements core.SelectionSource.
func (s StaticSelection) Selection(context.Context) (string, error) {
	return string(s), nil
}

// ReaderSelection reads the whole selection from a reader, such as stdin.
type ReaderSelection struct {
	Reader io.Reader
}

// Selection implements core.SelectionSource.
func (r ReaderSelection) Selection(context.Context) (string, error) {
	data, err := io.ReadAll(r.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}

	return string(data), nil
}

// LogNotifier writes user-facing messages to the log.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements core.Notifier.
func (n *LogNotifier) Notify(title, message string) {
	n.log.Info("%s: %s", title, message)
}

// Alert implements core.Notifier.
func (n *LogNotifier) Alert(message string) {
	n.log.Error("%s", message)
}

// LogIndicator writes badge changes to the log.
type LogIndicator struct {
	log *logger.Logger
}

// NewLogIndicator creates a LogIndicator.
func NewLogIndicator(log *logger.Logger) *LogIndicator {
	return &LogIndicator{log: log}
}

// SetState implements core.Indicator.
func (l *LogIndicator) SetState(state core.IndicatorState) {
	l.log.Info("Badge: %q", state.String())
}

// Badge combines playback state with credential state. While audio plays it
// shows speaking; otherwise it shows setup-needed until both credentials are
// present.
type Badge struct {
	target core.Indicator

	mu          sync.Mutex
	setupNeeded bool
	speaking    bool
	shown       core.IndicatorState
	rendered    bool
}

// NewBadge creates a Badge rendering to target.
func NewBadge(target core.Indicator) *Badge {
	return &Badge{target: target}
}

// SetState implements core.Indicator for the playback controller.
func (b *Badge) SetState(state core.IndicatorState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch state {
	case core.StateSpeaking:
		b.speaking = true
	case core.StateIdle:
		b.speaking = false
	case core.StateSetupNeeded:
		b.setupNeeded = true
	}

	b.renderLocked()
}

// CredentialsChanged updates the setup-needed flag.
func (b *Badge) CredentialsChanged(creds settings.Credentials) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setupNeeded = !creds.Complete()
	b.renderLocked()
}

// Refresh reads the stored credentials and updates the badge.
func (b *Badge) Refresh(ctx context.Context, repo *settings.Repository) error {
	creds, err := repo.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh badge: %w", err)
	}

	b.CredentialsChanged(creds)

	return nil
}

// State returns what the badge currently shows.
func (b *Badge) State() core.IndicatorState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentLocked()
}

func (b *Badge) currentLocked() core.IndicatorState {
	switch {
	case b.speaking:
		return core.StateSpeaking
	case b.setupNeeded:
		return core.StateSetupNeeded
	default:
		return core.StateIdle
	}
}

func (b *Badge) renderLocked() {
	next := b.currentLocked()
	if b.rendered && next == b.shown {
		return
	}

	b.shown = next
	b.rendered = true

	if b.target != nil {
		b.target.SetState(next)
	}
}
