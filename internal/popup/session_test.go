package popup_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/book-expert/speak-service/internal/popup"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVoices = []catalog.Voice{
	{ShortName: "de-DE-KatjaNeural", DisplayName: "Katja", Locale: "de-DE", LocaleName: "German (Germany)", Gender: "Female"},
	{
		ShortName: "en-US-AvaMultilingualNeural", DisplayName: "Ava", Locale: "en-US",
		LocaleName: "English (United States)", Gender: "Female", SecondaryLocaleList: []string{"fr-FR", "de-DE"},
	},
	{ShortName: "en-US-JennyNeural", DisplayName: "Jenny", Locale: "en-US", LocaleName: "English (United States)", Gender: "Female"},
	{ShortName: "en-GB-RyanNeural", DisplayName: "Ryan", Locale: "en-GB", LocaleName: "English (United Kingdom)", Gender: "Male"},
}

// fakeService stands in for both the token provider and the catalog client.
type fakeService struct {
	mu          sync.Mutex
	tokenCalls  int
	voiceCalls  int
	tokenErr    error
	voicesErr   error
	lastRegion  string
	voiceResult []catalog.Voice
}

func (f *fakeService) GetToken(_ context.Context, apiKey, region string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokenCalls++
	f.lastRegion = region

	if f.tokenErr != nil {
		return "", f.tokenErr
	}

	return "token-" + apiKey, nil
}

func (f *fakeService) ListVoices(_ context.Context, _, _ string) ([]catalog.Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.voiceCalls++

	if f.voicesErr != nil {
		return nil, f.voicesErr
	}

	voices := append([]catalog.Voice(nil), f.voiceResult...)
	catalog.Sort(voices)

	return voices, nil
}

func (f *fakeService) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tokenCalls, f.voiceCalls
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "popup-test.log")
	require.NoError(t, err)

	return testLogger
}

func newSession(t *testing.T, initial map[string]string, opts ...popup.Option) (*popup.Session, *fakeService, *settings.Repository) {
	t.Helper()

	service := &fakeService{voiceResult: testVoices}
	repo := settings.NewRepository(settings.NewMemoryStore(initial))
	session := popup.NewSession(repo, service, service, newTestLogger(t), opts...)

	return session, service, repo
}

func configured() map[string]string {
	return map[string]string{
		settings.KeyAPIKey:        "key",
		settings.KeyRegion:        "eastus",
		settings.KeySelectedVoice: "en-US-JennyNeural",
	}
}

func TestSession_OpenWithoutCredentials(t *testing.T) {
	t.Parallel()

	session, service, _ := newSession(t, nil)

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	assert.True(t, view.SetupNeeded)
	assert.False(t, view.VoicesLoaded)
	assert.Equal(t, settings.DefaultVoice, view.SelectedVoice)
	assert.Equal(t, catalog.AllLanguages, view.LanguageFilter)

	tokenCalls, voiceCalls := service.calls()
	assert.Zero(t, tokenCalls)
	assert.Zero(t, voiceCalls)
}

func TestSession_OpenLoadsVoicesSorted(t *testing.T) {
	t.Parallel()

	session, service, _ := newSession(t, configured())

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	require.True(t, view.VoicesLoaded)
	assert.Equal(t, 4, view.TotalVoices)
	assert.Equal(t, 1, view.MultilingualCount)
	assert.True(t, view.SelectedVisible)
	assert.Equal(t, []string{
		"de-DE-KatjaNeural",
		"en-GB-RyanNeural",
		"en-US-AvaMultilingualNeural",
		"en-US-JennyNeural",
	}, shortNames(view.Voices))
	assert.Equal(t, []catalog.Language{{Code: "de", Name: "German"}, {Code: "en", Name: "English"}}, view.Languages)
	assert.Equal(t, "eastus", service.lastRegion)

	// A second open reuses the list for the session's lifetime.
	_, err = session.Open(context.Background())
	require.NoError(t, err)

	_, voiceCalls := service.calls()
	assert.Equal(t, 1, voiceCalls)
}

func TestSession_FiltersCommuteAndKeepTheList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	languageFirst, _, _ := newSession(t, configured())
	_, err := languageFirst.Open(ctx)
	require.NoError(t, err)
	_, err = languageFirst.SetLanguageFilter(ctx, "en")
	require.NoError(t, err)
	viewA, err := languageFirst.SetMultilingualOnly(ctx, true)
	require.NoError(t, err)

	multilingualFirst, _, _ := newSession(t, configured())
	_, err = multilingualFirst.Open(ctx)
	require.NoError(t, err)
	_, err = multilingualFirst.SetMultilingualOnly(ctx, true)
	require.NoError(t, err)
	viewB, err := multilingualFirst.SetLanguageFilter(ctx, "en")
	require.NoError(t, err)

	assert.Equal(t, shortNames(viewA.Voices), shortNames(viewB.Voices))
	assert.Equal(t, []string{"en-US-AvaMultilingualNeural"}, shortNames(viewA.Voices))
	assert.Equal(t, 4, viewA.TotalVoices)
	assert.False(t, viewA.SelectedVisible, "Jenny is hidden by the multilingual filter")

	cleared, err := languageFirst.SetFilter(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, cleared.Voices, 4)
}

func TestSession_PersistsEveryChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session, _, repo := newSession(t, configured())

	_, err := session.Open(ctx)
	require.NoError(t, err)

	_, err = session.SetLanguageFilter(ctx, "de")
	require.NoError(t, err)
	_, err = session.SetMultilingualOnly(ctx, true)
	require.NoError(t, err)
	_, err = session.SelectVoice(ctx, "de-DE-KatjaNeural")
	require.NoError(t, err)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de", stored.LanguageFilter)
	assert.True(t, stored.MultilingualOnly)
	assert.Equal(t, "de-DE-KatjaNeural", stored.SelectedVoice)

	// A new session restores the filters and selection.
	restored := popup.NewSession(repo, &fakeService{voiceResult: testVoices}, &fakeService{voiceResult: testVoices},
		newTestLogger(t))

	view, err := restored.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de", view.LanguageFilter)
	assert.True(t, view.MultilingualOnly)
	assert.Equal(t, "de-DE-KatjaNeural", view.SelectedVoice)
	assert.Empty(t, view.Voices)
}

func TestSession_SaveCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var hooked []settings.Credentials

	session, _, repo := newSession(t, nil, popup.WithCredentialsHook(func(creds settings.Credentials) {
		hooked = append(hooked, creds)
	}))

	_, err := session.Open(ctx)
	require.NoError(t, err)

	_, err = session.SaveCredentials(ctx, settings.Credentials{APIKey: "  ", Region: "eastus"})
	require.ErrorIs(t, err, tts.ErrConfig)
	assert.Empty(t, hooked)

	view, err := session.SaveCredentials(ctx, settings.Credentials{APIKey: " key ", Region: " westeurope\n"})
	require.NoError(t, err)
	assert.False(t, view.SetupNeeded)
	assert.True(t, view.HasAPIKey)
	assert.Equal(t, "westeurope", view.Region)

	creds, err := repo.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Credentials{APIKey: "key", Region: "westeurope"}, creds)
	assert.Equal(t, []settings.Credentials{creds}, hooked)
}

func TestSession_RegionChangeDropsList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session, _, _ := newSession(t, configured())

	view, err := session.Open(ctx)
	require.NoError(t, err)
	require.True(t, view.VoicesLoaded)

	view, err = session.SaveCredentials(ctx, settings.Credentials{APIKey: "key", Region: "westus"})
	require.NoError(t, err)
	assert.False(t, view.VoicesLoaded)
	assert.Empty(t, view.Voices)
}

func TestSession_LoadVoicesErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()

		session, service, _ := newSession(t, nil)
		_, err := session.Open(ctx)
		require.NoError(t, err)

		view, err := session.LoadVoices(ctx)
		require.ErrorIs(t, err, tts.ErrConfig)
		assert.NotEmpty(t, view.LoadError)

		tokenCalls, _ := service.calls()
		assert.Zero(t, tokenCalls)
	})

	t.Run("auth failure stops before the catalog", func(t *testing.T) {
		t.Parallel()

		session, service, _ := newSession(t, nil)
		service.tokenErr = &tts.StatusError{Kind: tts.ErrAuth, StatusCode: http.StatusUnauthorized, Reason: "Unauthorized"}

		_, err := session.SaveCredentials(ctx, settings.Credentials{APIKey: "bad", Region: "eastus"})
		require.NoError(t, err)

		view, err := session.LoadVoices(ctx)
		require.ErrorIs(t, err, tts.ErrAuth)
		assert.Contains(t, view.LoadError, "401")

		_, voiceCalls := service.calls()
		assert.Zero(t, voiceCalls)
	})

	t.Run("catalog failure", func(t *testing.T) {
		t.Parallel()

		session, service, _ := newSession(t, configured())
		service.voicesErr = &tts.StatusError{Kind: tts.ErrCatalog, StatusCode: http.StatusForbidden, Reason: "Forbidden"}

		view, err := session.Open(ctx)
		require.NoError(t, err, "open reports load failures in the view")
		assert.False(t, view.VoicesLoaded)
		assert.Contains(t, view.LoadError, "voices request failed")
	})
}

func TestSession_SelectVoice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	unloaded, _, _ := newSession(t, nil)
	_, err := unloaded.SelectVoice(ctx, "en-US-JennyNeural")
	require.ErrorIs(t, err, popup.ErrVoicesNotLoaded)

	session, _, _ := newSession(t, configured())
	_, err = session.Open(ctx)
	require.NoError(t, err)

	_, err = session.SelectVoice(ctx, "xx-XX-NobodyNeural")
	require.ErrorIs(t, err, popup.ErrUnknownVoice)

	view, err := session.SelectVoice(ctx, " en-GB-RyanNeural ")
	require.NoError(t, err)
	assert.Equal(t, "en-GB-RyanNeural", view.SelectedVoice)
	assert.True(t, view.SelectedVisible)
}

func TestView_VoiceOptions(t *testing.T) {
	t.Parallel()

	session, _, _ := newSession(t, configured())

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	var ava popup.VoiceOption

	for _, option := range view.Voices {
		if option.ShortName == "en-US-AvaMultilingualNeural" {
			ava = option
		}
	}

	assert.True(t, ava.Multilingual)
	assert.Equal(t, "English (United States) - Ava (Female) [Multilingual]", ava.Label)
	assert.Equal(t, []string{"English", "French", "German"}, ava.SupportedLanguages)
}

func shortNames(options []popup.VoiceOption) []string {
	names := make([]string, 0, len(options))
	for _, option := range options {
		names = append(names, option.ShortName)
	}

	return names
}
