// Package text cleans up text selected on a web page before it is sent for
// synthesis.
package text

import (
	"regexp"
	"strings"
)

// Regex patterns for selection cleanup.
const (
	// Footnote markers such as [1], [12] or [citation needed].
	referenceRegexPattern  = `\[(?:\d+|citation needed|clarification needed|edit)\]`
	whitespaceRegexPattern = `\s+`
	spaceBeforePunctRegex  = ` +([.,;:!?])`
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	softHyphen   = "\u00ad"
	zeroWidth    = "\u200b"
	zeroWidthNJ  = "\u200c"
	zeroWidthJ   = "\u200d"
	byteOrder    = "\ufeff"
	nbsp         = "\u00a0"
)

// Normalizer rewrites selections into plain speakable text.
type Normalizer struct {
	referencePattern  *regexp.Regexp
	whitespacePattern *regexp.Regexp
	punctPattern      *regexp.Regexp
	charReplacer      *strings.Replacer
}

// NewNormalizer creates a Normalizer with its patterns compiled.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		referencePattern:  regexp.MustCompile(referenceRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		punctPattern:      regexp.MustCompile(spaceBeforePunctRegex),
		charReplacer: strings.NewReplacer(
			softHyphen, "",
			zeroWidth, "",
			zeroWidthNJ, "",
			zeroWidthJ, "",
			byteOrder, "",
			nbsp, " ",
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize strips invisible characters and footnote markers, straightens
// quotes and dashes, and collapses whitespace. It returns "" for a selection
// with nothing speakable in it.
func (n *Normalizer) Normalize(selection string) string {
	if selection == "" {
		return ""
	}

	out := n.charReplacer.Replace(selection)
	out = n.referencePattern.ReplaceAllString(out, "")
	out = n.whitespacePattern.ReplaceAllString(out, " ")
	out = n.punctPattern.ReplaceAllString(out, "$1")

	return strings.TrimSpace(out)
}
