package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>
    Acme   Corp
  </title>
  <style>body { color: red; }</style>
  <script>var hidden = "nope";</script>
</head>
<body>
  <h1>Welcome</h1>
  <p>We build
     rockets.</p>
  <!-- a comment -->
  <noscript>enable js</noscript>
  <a href="/about">About</a>
  <a href="/files/report.pdf">Report</a>
  <a href="https://cdn.example.com/deck.pdf">Deck</a>
  <a href="/files/UPPER.PDF">Upper</a>
  <a href="/files/query.pdf?v=1">Query</a>
  <a>No href</a>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	t.Parallel()

	page := ExtractHTML([]byte(samplePage))
	require.Equal(t, ReasonOK, page.Reason)
	assert.Equal(t, "Acme Corp", page.Title)
	assert.Equal(t, 6, page.LinkCount)
	assert.Equal(t, []string{"/files/report.pdf", "https://cdn.example.com/deck.pdf"}, page.PDFLinks)

	assert.Contains(t, page.Text, "Welcome We build rockets.")
	assert.Contains(t, page.Text, "Acme Corp")
	assert.NotContains(t, page.Text, "hidden")
	assert.NotContains(t, page.Text, "color: red")
	assert.NotContains(t, page.Text, "enable js")
	assert.NotContains(t, page.Text, "a comment")
	assert.Equal(t, Normalize(page.Text), page.Text)
}

func TestExtractHTMLWithoutTitle(t *testing.T) {
	t.Parallel()

	page := ExtractHTML([]byte("<html><body><p>hello</p></body></html>"))
	assert.Equal(t, "N/A", page.Title)
	assert.Equal(t, "hello", page.Text)
	assert.Zero(t, page.LinkCount)
	assert.Empty(t, page.PDFLinks)
}

func TestExtractHTMLEmptyInput(t *testing.T) {
	t.Parallel()

	page := ExtractHTML([]byte("  \n "))
	assert.Equal(t, ReasonEmptyInput, page.Reason)
	assert.Empty(t, page.Text)
	assert.Equal(t, "N/A", page.Title)
}

func TestExtractHTMLNoVisibleText(t *testing.T) {
	t.Parallel()

	page := ExtractHTML([]byte("<html><head><script>x()</script></head><body>   </body></html>"))
	assert.Equal(t, ReasonNoText, page.Reason)
	assert.Empty(t, ExtractHTMLText([]byte("<script>x()</script>")))
}

func TestIsPDFLink(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPDFLink("a.pdf"))
	assert.True(t, IsPDFLink("https://x.test/docs/a.pdf"))
	assert.False(t, IsPDFLink("a.PDF"))
	assert.False(t, IsPDFLink("a.pdf#page=2"))
	assert.False(t, IsPDFLink(""))
}

func TestResolvePDFLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.test/a.pdf", ResolvePDFLink("https://acme.test", "https://cdn.test/a.pdf"))
	assert.Equal(t, "http://cdn.test/a.pdf", ResolvePDFLink("https://acme.test", "http://cdn.test/a.pdf"))
	assert.Equal(t, "https://acme.test/docs/a.pdf", ResolvePDFLink("https://acme.test", "/docs/a.pdf"))
	// Plain concatenation: no separator is inserted.
	assert.Equal(t, "https://acme.testdocs/a.pdf", ResolvePDFLink("https://acme.test", "docs/a.pdf"))
}
