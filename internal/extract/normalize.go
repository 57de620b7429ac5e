package extract

import "strings"

// Normalize collapses every run of whitespace (newlines included) into a single
// space and trims both ends. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
