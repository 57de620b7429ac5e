package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// pdfSuffix is matched case-sensitively against raw href values.
const pdfSuffix = ".pdf"

// untitled is returned when the document has no <title> element.
const untitled = "N/A"

// nonVisibleSelectors lists elements whose text never renders.
const nonVisibleSelectors = "script, style, noscript, template"

// ExtractHTML parses raw HTML and returns its visible text, title, anchor count
// and the hrefs that end in ".pdf", in document order.
func ExtractHTML(raw []byte) Page {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Page{Title: untitled, Reason: ReasonEmptyInput}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Page{Title: untitled, Reason: ReasonParseFailed, Err: fmt.Errorf("parse html: %w", err)}
	}

	page := Page{
		Title:     extractTitle(doc),
		LinkCount: doc.Find("a").Length(),
		PDFLinks:  extractPDFLinks(doc),
	}

	doc.Find(nonVisibleSelectors).Remove()
	page.Text = visibleText(doc)
	if page.Text == "" {
		page.Reason = ReasonNoText
		return page
	}
	page.Reason = ReasonOK
	return page
}

// ExtractHTMLText is the text-only convenience wrapper around ExtractHTML.
func ExtractHTMLText(raw []byte) string {
	return ExtractHTML(raw).Text
}

func extractTitle(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return untitled
	}
	return Normalize(title.Text())
}

func extractPDFLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if ok && IsPDFLink(href) {
			links = append(links, href)
		}
	})
	return links
}

// IsPDFLink reports whether href ends with the literal ".pdf" suffix.
// ".PDF" and query-suffixed links do not match.
func IsPDFLink(href string) bool {
	return strings.HasSuffix(href, pdfSuffix)
}

// ResolvePDFLink makes href absolute the way the scraper always has: anything
// not starting with "http" is appended verbatim to the base URL.
func ResolvePDFLink(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return base + href
}

// visibleText joins every text node with a single space and normalizes the result.
func visibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return Normalize(strings.Join(parts, " "))
}
