package analysis

import (
	"regexp"
	"strings"
)

// tokenPattern splits text into words (keeping inner apostrophes) and single
// punctuation marks.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['’][\p{L}\p{N}_]+)*|[^\p{L}\p{N}_\s]`)

// Tokenize returns the word and punctuation tokens of text in order.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// LimitWords keeps the first budget tokens of text. Text within budget is
// returned unchanged; truncated text is re-joined with single spaces.
// A budget of zero or less disables truncation.
func LimitWords(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	tokens := Tokenize(text)
	if len(tokens) <= budget {
		return text
	}
	return strings.Join(tokens[:budget], " ")
}
