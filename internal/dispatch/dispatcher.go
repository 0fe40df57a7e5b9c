// Package dispatch turns user commands into speech: it reads the selection and
// the stored settings, then runs token, synthesis and playback in order.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/core"
	"github.com/book-expert/speak-service/internal/playback"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/book-expert/speak-service/internal/tts/text"
)

// Command names a user-facing action.
type Command string

// Supported commands.
const (
	// CommandSpeakText comes from the context-menu entry, which carries the
	// selected text with it.
	CommandSpeakText Command = "speakText"
	// CommandSpeakSelection comes from the keyboard shortcut, which reads the
	// selection from the page.
	CommandSpeakSelection Command = "speak-selected-text"
)

const notifyTitle = "Speak Text"

const (
	msgEmptySelection = "No text selected."
	msgConfigMissing  = "Please set your API key and region in the settings."
	errFmtStage       = "%s: %w"
)

var (
	// ErrEmptySelection is returned when there is nothing to speak.
	ErrEmptySelection = errors.New("no text selected")
	// ErrUnknownCommand is returned for command names that are not supported.
	ErrUnknownCommand = errors.New("unknown command")
)

// TokenSource issues bearer tokens for the speech service.
type TokenSource interface {
	GetToken(ctx context.Context, apiKey, region string) (string, error)
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, token, region, voiceID, text string) ([]byte, error)
}

// Player plays encoded audio.
type Player interface {
	Play(ctx context.Context, audio []byte) (*playback.Handle, error)
}

// Dispatcher runs the speak pipeline. Every failure is shown to the user and
// returned; nothing is retried.
type Dispatcher struct {
	repo       *settings.Repository
	tokens     TokenSource
	synth      Synthesizer
	player     Player
	notifier   core.Notifier
	normalizer *text.Normalizer
	log        *logger.Logger
}

// New creates a Dispatcher.
func New(
	repo *settings.Repository,
	tokens TokenSource,
	synth Synthesizer,
	player Player,
	notifier core.Notifier,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		tokens:     tokens,
		synth:      synth,
		player:     player,
		notifier:   notifier,
		normalizer: text.NewNormalizer(),
		log:        log,
	}
}

// Dispatch runs cmd with the text provided by source.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, source core.SelectionSource) (*playback.Handle, error) {
	switch cmd {
	case CommandSpeakText, CommandSpeakSelection:
	default:
		d.log.Warn("Ignoring unknown command %q", cmd)

		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	selection, err := source.Selection(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read selection: %w", err)
		d.notifier.Alert(err.Error())

		return nil, err
	}

	return d.Speak(ctx, selection)
}

// Speak speaks selection with the stored credentials and voice. An empty
// selection is reported before the settings are read, and missing
// credentials before any network call.
func (d *Dispatcher) Speak(ctx context.Context, selection string) (*playback.Handle, error) {
	spoken := d.normalizer.Normalize(selection)
	if spoken == "" {
		d.notifier.Notify(notifyTitle, msgEmptySelection)

		return nil, ErrEmptySelection
	}

	stored, err := d.repo.Load(ctx)
	if err != nil {
		return nil, d.fail("failed to read settings", err)
	}

	if !stored.Complete() {
		d.notifier.Alert(msgConfigMissing)

		return nil, fmt.Errorf("%w: %s", tts.ErrConfig, msgConfigMissing)
	}

	token, err := d.tokens.GetToken(ctx, stored.APIKey, stored.Region)
	if err != nil {
		return nil, d.fail("failed to get token", err)
	}

	audio, err := d.synth.Synthesize(ctx, token, stored.Region, stored.SelectedVoice, spoken)
	if err != nil {
		return nil, d.fail("failed to synthesize speech", err)
	}

	handle, err := d.player.Play(ctx, audio)
	if err != nil {
		return nil, d.fail("failed to play audio", err)
	}

	d.log.Info("Speaking %d characters with voice %s", len(spoken), stored.SelectedVoice)

	return handle, nil
}

func (d *Dispatcher) fail(stage string, err error) error {
	wrapped := fmt.Errorf(errFmtStage, stage, err)

	d.log.Error("Speak failed: %v", wrapped)
	d.notifier.Alert(wrapped.Error())

	return wrapped
}
