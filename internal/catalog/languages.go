package catalog

var languageNames = map[string]string{
	"ar": "Arabic",
	"zh": "Chinese",
	"cs": "Czech",
	"da": "Danish",
	"nl": "Dutch",
	"en": "English",
	"fi": "Finnish",
	"fr": "French",
	"de": "German",
	"el": "Greek",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"es": "Spanish",
	"sv": "Swedish",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
}

// LanguageName returns the English name of a language code, or the code
// itself when it is not known.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}

	return code
}
