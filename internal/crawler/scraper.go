package crawler

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/extract"
	"github.com/JakeFAU/company-signals/internal/metrics"
)

const descriptionNoText = "Received 200 response with no extractable text"

// Scraper turns one Target into an optional Profile and exactly one LogRecord.
type Scraper struct {
	pages  *PageFetcher
	logger *zap.Logger
}

// NewScraper constructs a Scraper around a PageFetcher.
func NewScraper(pages *PageFetcher, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{pages: pages, logger: logger}
}

// Scrape fetches the target's page, extracts its text and linked PDFs and
// returns a profile when the page yielded text. A nil profile is normal.
func (s *Scraper) Scrape(ctx context.Context, target Target) (*Profile, LogRecord) {
	body, _, record := s.pages.FetchPage(ctx, target.Website)
	record.Company = target.Company
	if !record.Succeeded() {
		metrics.ObserveScrape(string(record.Status))
		return nil, record
	}

	page := extract.ExtractHTML(body)
	record.PageTitle = page.Title
	record.ContentLength = utf8.RuneCountInString(page.Text)
	record.LinkCount = page.LinkCount
	record.PDFCount = len(page.PDFLinks)
	record.FirstPDFURL = NotAvailable
	if len(page.PDFLinks) > 0 {
		record.FirstPDFURL = page.PDFLinks[0]
	}
	if page.Text == "" {
		record.Status = StatusFailed
		record.Description = descriptionNoText
		s.logger.Info("page yielded no text",
			zap.String("url", target.Website),
			zap.String("reason", string(page.Reason)),
			zap.Error(page.Err),
		)
		metrics.ObserveScrape(string(record.Status))
		return nil, record
	}

	metrics.ObserveScrape(string(record.Status))
	return &Profile{
		Company:   target.Company,
		Website:   target.Website,
		PersonRef: target.PersonRef,
		PageText:  page.Text,
		PDFText:   strings.Join(s.collectPDFs(ctx, target.Website, page.PDFLinks), " "),
	}, record
}

// collectPDFs fetches each link once, in order, skipping failures and
// documents without text.
func (s *Scraper) collectPDFs(ctx context.Context, base string, links []string) []string {
	texts := make([]string, 0, len(links))
	for _, href := range links {
		if ctx.Err() != nil {
			break
		}
		link := extract.ResolvePDFLink(base, href)
		resp, err := s.pages.FetchDocument(ctx, link)
		if err != nil {
			metrics.ObservePDFFetch("fetch_failed")
			s.logger.Info("skipping pdf", zap.String("url", link), zap.Error(err))
			continue
		}
		result := extract.ExtractPDFResult(resp.Body)
		if result.Text == "" {
			metrics.ObservePDFFetch(string(result.Reason))
			s.logger.Debug("pdf yielded no text",
				zap.String("url", link),
				zap.String("reason", string(result.Reason)),
				zap.Error(result.Err),
			)
			continue
		}
		metrics.ObservePDFFetch("ok")
		texts = append(texts, result.Text)
	}
	return texts
}
