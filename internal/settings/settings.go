// Package settings persists the user's speech settings in a key-value store.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/book-expert/speak-service/internal/core"
)

// Persisted keys.
const (
	KeyAPIKey           = "apiKey"
	KeyRegion           = "region"
	KeySelectedVoice    = "selectedVoice"
	KeyLanguageFilter   = "selectedLanguageFilter"
	KeyMultilingualOnly = "multilingualFilterEnabled"
)

// DefaultVoice is the voice used until the user picks one.
const DefaultVoice = "en-US-JennyNeural"

const errFmtKey = "settings key %q: %w"

// Credentials are the user's API key and service region.
type Credentials struct {
	APIKey string `json:"apiKey"`
	Region string `json:"region"`
}

// Complete reports whether both fields are non-blank.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Region) != ""
}

// Trimmed returns the credentials with surrounding whitespace removed.
func (c Credentials) Trimmed() Credentials {
	return Credentials{
		APIKey: strings.TrimSpace(c.APIKey),
		Region: strings.TrimSpace(c.Region),
	}
}

// Settings is everything the service persists.
type Settings struct {
	Credentials
	SelectedVoice    string
	LanguageFilter   string
	MultilingualOnly bool
}

// Filter returns the persisted voice filter.
func (s Settings) Filter() catalog.Filter {
	return catalog.NewFilter(s.LanguageFilter, s.MultilingualOnly)
}

// Repository reads and writes typed settings over a core.SettingsStore.
type Repository struct {
	store core.SettingsStore
}

// NewRepository wraps a store.
func NewRepository(store core.SettingsStore) *Repository {
	return &Repository{store: store}
}

// Load reads every setting, applying defaults for missing keys.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	var (
		out Settings
		err error
	)

	if out.APIKey, err = r.get(ctx, KeyAPIKey, ""); err != nil {
		return Settings{}, err
	}

	if out.Region, err = r.get(ctx, KeyRegion, ""); err != nil {
		return Settings{}, err
	}

	if out.SelectedVoice, err = r.get(ctx, KeySelectedVoice, DefaultVoice); err != nil {
		return Settings{}, err
	}

	if out.LanguageFilter, err = r.get(ctx, KeyLanguageFilter, catalog.AllLanguages); err != nil {
		return Settings{}, err
	}

	multilingual, err := r.get(ctx, KeyMultilingualOnly, "false")
	if err != nil {
		return Settings{}, err
	}

	out.MultilingualOnly, _ = strconv.ParseBool(multilingual)

	if out.SelectedVoice == "" {
		out.SelectedVoice = DefaultVoice
	}

	return out, nil
}

// Credentials reads only the API key and region.
func (r *Repository) Credentials(ctx context.Context) (Credentials, error) {
	apiKey, err := r.get(ctx, KeyAPIKey, "")
	if err != nil {
		return Credentials{}, err
	}

	region, err := r.get(ctx, KeyRegion, "")
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{APIKey: apiKey, Region: region}, nil
}

// SaveCredentials persists the API key and region as given.
func (r *Repository) SaveCredentials(ctx context.Context, creds Credentials) error {
	err := r.set(ctx, KeyAPIKey, creds.APIKey)
	if err != nil {
		return err
	}

	return r.set(ctx, KeyRegion, creds.Region)
}

// SaveSelectedVoice persists the chosen voice.
func (r *Repository) SaveSelectedVoice(ctx context.Context, shortName string) error {
	return r.set(ctx, KeySelectedVoice, shortName)
}

// SaveFilter persists both filter values.
func (r *Repository) SaveFilter(ctx context.Context, filter catalog.Filter) error {
	err := r.set(ctx, KeyLanguageFilter, filter.LanguageValue())
	if err != nil {
		return err
	}

	return r.set(ctx, KeyMultilingualOnly, strconv.FormatBool(filter.MultilingualOnly))
}

// EnsureDefaults writes the install-time defaults for keys that were never
// set, leaving existing values alone. seed provides initial credentials and
// voice falls back to DefaultVoice when empty.
func (r *Repository) EnsureDefaults(ctx context.Context, seed Credentials, voice string) error {
	if strings.TrimSpace(voice) == "" {
		voice = DefaultVoice
	}

	defaults := []struct {
		key   string
		value string
	}{
		{KeyAPIKey, strings.TrimSpace(seed.APIKey)},
		{KeyRegion, strings.TrimSpace(seed.Region)},
		{KeySelectedVoice, strings.TrimSpace(voice)},
	}

	for _, entry := range defaults {
		_, found, err := r.store.Get(ctx, entry.key)
		if err != nil {
			return fmt.Errorf(errFmtKey, entry.key, err)
		}

		if found {
			continue
		}

		err = r.set(ctx, entry.key, entry.value)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Repository) get(ctx context.Context, key, fallback string) (string, error) {
	value, found, err := r.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf(errFmtKey, key, err)
	}

	if !found {
		return fallback, nil
	}

	return value, nil
}

func (r *Repository) set(ctx context.Context, key, value string) error {
	err := r.store.Set(ctx, key, value)
	if err != nil {
		return fmt.Errorf(errFmtKey, key, err)
	}

	return nil
}
