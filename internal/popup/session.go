// Package popup holds the settings surface: credential entry, voice catalog
// loading and filtering, and voice selection.
package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/samber/lo"
)

var (
	// ErrVoicesNotLoaded is returned when a voice is selected before the list is loaded.
	ErrVoicesNotLoaded = errors.New("voice list has not been loaded")
	// ErrUnknownVoice is returned when the selected voice is not in the loaded list.
	ErrUnknownVoice = errors.New("voice is not in the loaded list")
)

// TokenSource issues bearer tokens for the speech service.
type TokenSource interface {
	GetToken(ctx context.Context, apiKey, region string) (string, error)
}

// VoiceLister fetches the voice catalog.
type VoiceLister interface {
	ListVoices(ctx context.Context, token, region string) ([]catalog.Voice, error)
}

// VoiceOption is one entry of the voice drop-down.
type VoiceOption struct {
	ShortName          string   `json:"shortName"`
	Label              string   `json:"label"`
	Locale             string   `json:"locale"`
	Multilingual       bool     `json:"multilingual"`
	SupportedLanguages []string `json:"supportedLanguages,omitempty"`
}

// View is what the settings surface renders.
type View struct {
	Region            string             `json:"region"`
	HasAPIKey         bool               `json:"hasApiKey"`
	SetupNeeded       bool               `json:"setupNeeded"`
	VoicesLoaded      bool               `json:"voicesLoaded"`
	TotalVoices       int                `json:"totalVoices"`
	MultilingualCount int                `json:"multilingualCount"`
	Languages         []catalog.Language `json:"languages"`
	Voices            []VoiceOption      `json:"voices"`
	LanguageFilter    string             `json:"languageFilter"`
	MultilingualOnly  bool               `json:"multilingualOnly"`
	SelectedVoice     string             `json:"selectedVoice"`
	SelectedVisible   bool               `json:"selectedVisible"`
	LoadError         string             `json:"loadError,omitempty"`
}

// Session is the state of one open settings surface. The full voice list is
// kept for the session's lifetime and filtered on every render; it is never
// trimmed by a filter.
type Session struct {
	mu sync.Mutex

	repo   *settings.Repository
	tokens TokenSource
	voices VoiceLister
	log    *logger.Logger

	onCredentials func(settings.Credentials)

	current   settings.Settings
	all       []catalog.Voice
	loaded    bool
	loadError string
}

// Option configures a Session.
type Option func(*Session)

// WithCredentialsHook registers fn to run after credentials are saved.
func WithCredentialsHook(fn func(settings.Credentials)) Option {
	return func(s *Session) {
		s.onCredentials = fn
	}
}

// NewSession creates a Session. Call Open before anything else.
func NewSession(
	repo *settings.Repository,
	tokens TokenSource,
	voices VoiceLister,
	log *logger.Logger,
	opts ...Option,
) *Session {
	session := &Session{
		repo:   repo,
		tokens: tokens,
		voices: voices,
		log:    log,
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

// Open loads the persisted settings and, when credentials are present, the
// voice list. A failed voice load is reported in the view rather than as an
// error so the credentials form stays usable.
func (s *Session) Open(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return View{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s.current = loaded

	if s.current.Complete() && !s.loaded {
		loadErr := s.loadVoicesLocked(ctx)
		if loadErr != nil {
			s.log.Warn("Voice list could not be loaded on open: %v", loadErr)
		}
	}

	return s.viewLocked(), nil
}

// SaveCredentials trims and persists the API key and region.
func (s *Session) SaveCredentials(ctx context.Context, creds settings.Credentials) (View, error) {
	creds = creds.Trimmed()
	if !creds.Complete() {
		return View{}, fmt.Errorf("%w: please enter both API key and region", tts.ErrConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.SaveCredentials(ctx, creds)
	if err != nil {
		return View{}, fmt.Errorf("failed to save credentials: %w", err)
	}

	if creds.Region != s.current.Region {
		s.all = nil
		s.loaded = false
	}

	s.current.Credentials = creds
	s.log.Info("Credentials saved for region %s", creds.Region)

	if s.onCredentials != nil {
		s.onCredentials(creds)
	}

	return s.viewLocked(), nil
}

// LoadVoices fetches a token and the voice catalog and replaces the list.
func (s *Session) LoadVoices(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.loadVoicesLocked(ctx)
	if err != nil {
		return s.viewLocked(), err
	}

	return s.viewLocked(), nil
}

// SetLanguageFilter changes the language filter and persists it. "" and
// "all" clear it.
func (s *Session) SetLanguageFilter(ctx context.Context, language string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := catalog.NewFilter(language, s.current.MultilingualOnly)

	return s.applyFilterLocked(ctx, filter)
}

// SetMultilingualOnly toggles the multilingual filter and persists it.
func (s *Session) SetMultilingualOnly(ctx context.Context, enabled bool) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := catalog.NewFilter(s.current.LanguageFilter, enabled)

	return s.applyFilterLocked(ctx, filter)
}

// SetFilter replaces both filters at once and persists them.
func (s *Session) SetFilter(ctx context.Context, filter catalog.Filter) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyFilterLocked(ctx, filter)
}

// SelectVoice persists shortName as the voice used for speaking.
func (s *Session) SelectVoice(ctx context.Context, shortName string) (View, error) {
	shortName = strings.TrimSpace(shortName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return View{}, ErrVoicesNotLoaded
	}

	if _, ok := catalog.Find(s.all, shortName); !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownVoice, shortName)
	}

	err := s.repo.SaveSelectedVoice(ctx, shortName)
	if err != nil {
		return View{}, fmt.Errorf("failed to save selected voice: %w", err)
	}

	s.current.SelectedVoice = shortName
	s.log.Info("Selected voice %s", shortName)

	return s.viewLocked(), nil
}

// View renders the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewLocked()
}

func (s *Session) loadVoicesLocked(ctx context.Context) error {
	creds, err := s.repo.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	s.current.Credentials = creds

	if !creds.Complete() {
		s.loadError = "please enter API key and region first"

		return fmt.Errorf("%w: %s", tts.ErrConfig, s.loadError)
	}

	token, err := s.tokens.GetToken(ctx, creds.APIKey, creds.Region)
	if err != nil {
		s.loadError = err.Error()

		return fmt.Errorf("failed to get token: %w", err)
	}

	voices, err := s.voices.ListVoices(ctx, token, creds.Region)
	if err != nil {
		s.loadError = err.Error()

		return fmt.Errorf("failed to load voices: %w", err)
	}

	s.all = voices
	s.loaded = true
	s.loadError = ""
	s.log.Info("Loaded %d voices (%d multilingual) for region %s",
		len(voices), catalog.MultilingualCount(voices), creds.Region)

	return nil
}

func (s *Session) applyFilterLocked(ctx context.Context, filter catalog.Filter) (View, error) {
	err := s.repo.SaveFilter(ctx, filter)
	if err != nil {
		return View{}, fmt.Errorf("failed to save filter: %w", err)
	}

	s.current.LanguageFilter = filter.LanguageValue()
	s.current.MultilingualOnly = filter.MultilingualOnly

	return s.viewLocked(), nil
}

func (s *Session) viewLocked() View {
	filter := s.current.Filter()
	visible := filter.Apply(s.all)

	_, selectedVisible := catalog.Find(visible, s.current.SelectedVoice)

	return View{
		Region:            s.current.Region,
		HasAPIKey:         strings.TrimSpace(s.current.APIKey) != "",
		SetupNeeded:       !s.current.Complete(),
		VoicesLoaded:      s.loaded,
		TotalVoices:       len(s.all),
		MultilingualCount: catalog.MultilingualCount(s.all),
		Languages:         catalog.Languages(s.all),
		Voices:            lo.Map(visible, func(v catalog.Voice, _ int) VoiceOption { return toOption(v) }),
		LanguageFilter:    filter.LanguageValue(),
		MultilingualOnly:  filter.MultilingualOnly,
		SelectedVoice:     s.current.SelectedVoice,
		SelectedVisible:   selectedVisible,
		LoadError:         s.loadError,
	}
}

func toOption(v catalog.Voice) VoiceOption {
	return VoiceOption{
		ShortName:          v.ShortName,
		Label:              v.Label(),
		Locale:             v.Locale,
		Multilingual:       v.IsMultilingual(),
		SupportedLanguages: v.SupportedLanguages(),
	}
}
