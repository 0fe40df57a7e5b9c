package catalog

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// AllLanguages is the language filter value meaning "no language filter".
const AllLanguages = "all"

// Filter selects the visible subset of a voice list. The zero value shows
// every voice.
type Filter struct {
	// Language, when present, keeps voices whose locale starts with it.
	Language mo.Option[string]
	// MultilingualOnly keeps only voices with secondary locales.
	MultilingualOnly bool
}

// NewFilter builds a Filter from the persisted language value, where "" and
// AllLanguages both mean no language restriction.
func NewFilter(language string, multilingualOnly bool) Filter {
	return Filter{
		Language:         LanguageOption(language),
		MultilingualOnly: multilingualOnly,
	}
}

// LanguageOption converts a persisted language value to an option.
func LanguageOption(language string) mo.Option[string] {
	if language == "" || language == AllLanguages {
		return mo.None[string]()
	}

	return mo.Some(language)
}

// LanguageValue is the persisted form of the language restriction.
func (f Filter) LanguageValue() string {
	return f.Language.OrElse(AllLanguages)
}

// Match reports whether a single voice passes both filters.
func (f Filter) Match(v Voice) bool {
	if lang, ok := f.Language.Get(); ok && !strings.HasPrefix(v.Locale, lang) {
		return false
	}

	if f.MultilingualOnly && !v.IsMultilingual() {
		return false
	}

	return true
}

// Apply returns the voices that pass the filter, preserving order. The input
// slice is never modified.
func (f Filter) Apply(voices []Voice) []Voice {
	return lo.Filter(voices, func(v Voice, _ int) bool {
		return f.Match(v)
	})
}

// Language pairs a language code with its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages returns the distinct language codes of the voices, sorted by code.
func Languages(voices []Voice) []Language {
	codes := lo.Uniq(lo.Map(voices, func(v Voice, _ int) string {
		return v.LanguageCode()
	}))
	sort.Strings(codes)

	return lo.Map(codes, func(code string, _ int) Language {
		return Language{Code: code, Name: LanguageName(code)}
	})
}
