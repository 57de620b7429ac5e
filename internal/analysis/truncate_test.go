package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"Acme", "'", "s", "rockets", "fly", ",", "don't", "they", "?"},
		Tokenize("Acme 's rockets fly, don't they?"),
	)
	assert.Equal(t, []string{"Café", "№", "1"}, Tokenize("Café № 1"))
	assert.Empty(t, Tokenize("   "))
}

func TestLimitWordsTruncatesToBudget(t *testing.T) {
	t.Parallel()

	words := make([]string, 20)
	for i := range words {
		words[i] = "w" + string(rune('a'+i))
	}
	text := strings.Join(words, "  ")

	got := LimitWords(text, 10)
	assert.Equal(t, strings.Join(words[:10], " "), got)
	assert.Len(t, Tokenize(got), 10)
}

func TestLimitWordsWithinBudgetIsUnchanged(t *testing.T) {
	t.Parallel()

	text := "Hello,   world!\nLine two."
	assert.Equal(t, text, LimitWords(text, 50))
	assert.Equal(t, text, LimitWords(text, 0))
	assert.Equal(t, "", LimitWords("", 10))
}

func TestLimitWordsCountsPunctuation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a , b", LimitWords("a, b, c", 3))
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("ACME TEXT")
	assert.Contains(t, p, "### Scraped Text:\nACME TEXT\n")
	assert.Contains(t, p, "1. Company Overview")
	assert.Contains(t, p, "11. Opportunities for Engagement")
	assert.NotContains(t, p, "{text}")
}
