// Package catalog models the speech service voice catalog and the pure
// sorting and filtering rules the settings view applies to it.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const multilingualSuffix = " [Multilingual]"

// Voice is a single entry of the remote voice list. Field names follow the
// service's JSON payload.
type Voice struct {
	ShortName           string   `json:"ShortName"`
	DisplayName         string   `json:"DisplayName"`
	Locale              string   `json:"Locale"`
	LocaleName          string   `json:"LocaleName"`
	Gender              string   `json:"Gender"`
	SecondaryLocaleList []string `json:"SecondaryLocaleList,omitempty"`
}

// IsMultilingual reports whether the voice declares any secondary locale.
func (v Voice) IsMultilingual() bool {
	return len(v.SecondaryLocaleList) > 0
}

// LanguageCode returns the language part of the primary locale ("en" for "en-US").
func (v Voice) LanguageCode() string {
	return LanguageCode(v.Locale)
}

// Label is the human readable option text for the voice.
func (v Voice) Label() string {
	label := fmt.Sprintf("%s - %s (%s)", v.LocaleName, v.DisplayName, v.Gender)
	if v.IsMultilingual() {
		label += multilingualSuffix
	}

	return label
}

// SupportedLanguages lists the language names of the primary and secondary
// locales in declaration order. It is empty for single-language voices.
func (v Voice) SupportedLanguages() []string {
	if !v.IsMultilingual() {
		return nil
	}

	locales := append([]string{v.Locale}, v.SecondaryLocaleList...)

	return lo.Map(locales, func(locale string, _ int) string {
		return LanguageName(LanguageCode(locale))
	})
}

// LanguageCode returns the text before the first '-' of a locale.
func LanguageCode(locale string) string {
	code, _, _ := strings.Cut(locale, "-")

	return code
}

// Sort orders voices by locale, then by short name, in place.
func Sort(voices []Voice) {
	sort.SliceStable(voices, func(i, j int) bool {
		if voices[i].Locale != voices[j].Locale {
			return voices[i].Locale < voices[j].Locale
		}

		return voices[i].ShortName < voices[j].ShortName
	})
}

// Find returns the voice with the given short name.
func Find(voices []Voice, shortName string) (Voice, bool) {
	return lo.Find(voices, func(v Voice) bool {
		return v.ShortName == shortName
	})
}

// MultilingualCount counts voices with secondary locales.
func MultilingualCount(voices []Voice) int {
	return lo.CountBy(voices, Voice.IsMultilingual)
}
