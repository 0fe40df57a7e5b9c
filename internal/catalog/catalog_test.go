package catalog_test

import (
	"testing"

	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVoices() []catalog.Voice {
	return []catalog.Voice{
		{ShortName: "fr-FR-HenriNeural", DisplayName: "Henri", Locale: "fr-FR", LocaleName: "French (France)", Gender: "Male"},
		{ShortName: "en-US-JennyNeural", DisplayName: "Jenny", Locale: "en-US", LocaleName: "English (United States)", Gender: "Female"},
		{
			ShortName: "en-US-AndrewMultilingualNeural", DisplayName: "Andrew", Locale: "en-US",
			LocaleName: "English (United States)", Gender: "Male", SecondaryLocaleList: []string{"fr-FR", "de-DE"},
		},
		{ShortName: "en-GB-SoniaNeural", DisplayName: "Sonia", Locale: "en-GB", LocaleName: "English (United Kingdom)", Gender: "Female"},
		{
			ShortName: "de-DE-SeraphinaMultilingualNeural", DisplayName: "Seraphina", Locale: "de-DE",
			LocaleName: "German (Germany)", Gender: "Female", SecondaryLocaleList: []string{"en-US"},
		},
		{ShortName: "xx-YY-OddNeural", DisplayName: "Odd", Locale: "xx-YY", LocaleName: "Unknown", Gender: "Neutral"},
	}
}

func TestSort_LocaleThenShortName(t *testing.T) {
	t.Parallel()

	voices := sampleVoices()
	catalog.Sort(voices)

	names := make([]string, 0, len(voices))
	for _, v := range voices {
		names = append(names, v.ShortName)
	}

	assert.Equal(t, []string{
		"de-DE-SeraphinaMultilingualNeural",
		"en-GB-SoniaNeural",
		"en-US-AndrewMultilingualNeural",
		"en-US-JennyNeural",
		"fr-FR-HenriNeural",
		"xx-YY-OddNeural",
	}, names)

	for i := 0; i < len(voices); i++ {
		for j := i + 1; j < len(voices); j++ {
			a, b := voices[i], voices[j]
			require.LessOrEqual(t, a.Locale, b.Locale)

			if a.Locale == b.Locale {
				require.Less(t, a.ShortName, b.ShortName)
			}
		}
	}
}

func TestFilter_MultilingualFlag(t *testing.T) {
	t.Parallel()

	voices := []catalog.Voice{
		{ShortName: "a", Locale: "en-US", SecondaryLocaleList: []string{"fr-FR"}},
		{ShortName: "b", Locale: "en-US"},
	}

	visible := catalog.NewFilter("", true).Apply(voices)
	require.Len(t, visible, 1)
	assert.Equal(t, "a", visible[0].ShortName)

	assert.Len(t, catalog.NewFilter("", false).Apply(voices), 2)
}

func TestFilter_ComposesInAnyOrder(t *testing.T) {
	t.Parallel()

	voices := sampleVoices()
	before := len(voices)

	language := catalog.NewFilter("en", false)
	multilingual := catalog.NewFilter(catalog.AllLanguages, true)
	combined := catalog.NewFilter("en", true)

	languageFirst := multilingual.Apply(language.Apply(voices))
	multilingualFirst := language.Apply(multilingual.Apply(voices))

	assert.Equal(t, languageFirst, multilingualFirst)
	assert.Equal(t, languageFirst, combined.Apply(voices))
	require.Len(t, languageFirst, 1)
	assert.Equal(t, "en-US-AndrewMultilingualNeural", languageFirst[0].ShortName)
	assert.Len(t, voices, before)
	assert.Equal(t, sampleVoices(), voices)
}

func TestFilter_LanguageValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, catalog.AllLanguages, catalog.NewFilter("", false).LanguageValue())
	assert.Equal(t, catalog.AllLanguages, catalog.NewFilter(catalog.AllLanguages, false).LanguageValue())
	assert.Equal(t, "de", catalog.NewFilter("de", false).LanguageValue())
	assert.Len(t, catalog.Filter{}.Apply(sampleVoices()), len(sampleVoices()))
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []catalog.Language{
		{Code: "de", Name: "German"},
		{Code: "en", Name: "English"},
		{Code: "fr", Name: "French"},
		{Code: "xx", Name: "xx"},
	}, catalog.Languages(sampleVoices()))
}

func TestVoice_DerivedAttributes(t *testing.T) {
	t.Parallel()

	voices := sampleVoices()

	andrew, ok := catalog.Find(voices, "en-US-AndrewMultilingualNeural")
	require.True(t, ok)
	assert.True(t, andrew.IsMultilingual())
	assert.Equal(t, "en", andrew.LanguageCode())
	assert.Equal(t, "English (United States) - Andrew (Male) [Multilingual]", andrew.Label())
	assert.Equal(t, []string{"English", "French", "German"}, andrew.SupportedLanguages())

	jenny, ok := catalog.Find(voices, "en-US-JennyNeural")
	require.True(t, ok)
	assert.False(t, jenny.IsMultilingual())
	assert.Equal(t, "English (United States) - Jenny (Female)", jenny.Label())
	assert.Empty(t, jenny.SupportedLanguages())

	_, ok = catalog.Find(voices, "missing")
	assert.False(t, ok)

	assert.Equal(t, 2, catalog.MultilingualCount(voices))
}
