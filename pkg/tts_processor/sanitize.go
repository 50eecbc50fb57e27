package ttsprocessor

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// as few symbols as possible between two asterisks, or between an asterisk and the end of the string
var emphasisRe = regexp.MustCompile(`\*[^*]*?(\*|$)`)

var speechReplacer = strings.NewReplacer(
	`"`, "",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
	"(", "",
	"（", "",
	")", "",
	"）", "",
	"\r\n", " ",
	"\n", " ",
)

// a pass never grows the text, real replies settle after one or two
const maxPasses = 8

// Sanitize prepares a rendered reply for speech synthesis: stage directions wrapped in
// asterisks are dropped, quotes/parentheses removed and newlines flattened.
// Passes repeat until the text is stable, so nested html escaping is fully decoded.
// An empty result means there is nothing to speak.
func Sanitize(text string) string {
	for i := 0; i < maxPasses; i++ {
		next := sanitizePass(text)
		if next == text {
			break
		}

		text = next
	}

	return text
}

func sanitizePass(text string) string {
	text = norm.NFC.String(unescapeAll(text))
	text = StripEmphasis(text)
	text = speechReplacer.Replace(text)

	return strings.TrimSpace(text)
}

func unescapeAll(text string) string {
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(text)
		if next == text {
			break
		}

		text = next
	}

	return text
}

// StripEmphasis removes every *marked* run, and everything after an unmatched marker.
func StripEmphasis(text string) string {
	return emphasisRe.ReplaceAllString(text, "")
}
