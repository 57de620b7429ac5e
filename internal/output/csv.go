// Package output renders run results as CSV files and bundles them into a zip
// archive.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

// attemptLayout matches the log table's "Time of Attempt" column.
const attemptLayout = "2006-01-02 15:04:05"

// ProfileColumns is the profiles CSV header.
var ProfileColumns = []string{
	"Company",
	"Website",
	"Person LinkedIn URL",
	"Website Text",
	"PDF Text",
	"Website Analysis",
	"PDF Analysis",
	"Analysis Error",
}

// LogColumns is the logs CSV header.
var LogColumns = []string{
	"Website",
	"Company Name",
	"Domain",
	"Status",
	"Description",
	"Retries",
	"Time of Attempt",
	"Response Code",
	"Response Time",
	"Headers Sent",
	"Headers Received",
	"Page Title",
	"Content Length",
	"Number of Links",
	"Number of PDFs",
	"First PDF URL",
	"Redirected URL",
	"User-Agent",
	"Cookies Sent",
	"Cookies Received",
}

// WriteProfiles writes one row per profile. Signal columns are empty when the
// analysis phase did not run.
func WriteProfiles(w io.Writer, profiles []crawler.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProfileColumns); err != nil {
		return fmt.Errorf("write profiles header: %w", err)
	}
	for _, p := range profiles {
		var signals crawler.Signals
		if p.Signals != nil {
			signals = *p.Signals
		}
		row := []string{
			p.Company,
			p.Website,
			p.PersonRef,
			p.PageText,
			p.PDFText,
			signals.PageAnalysis,
			signals.PDFAnalysis,
			signals.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write profile row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush profiles: %w", err)
	}
	return nil
}

// WriteLogs writes one row per log record in the order given.
func WriteLogs(w io.Writer, logs []crawler.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LogColumns); err != nil {
		return fmt.Errorf("write logs header: %w", err)
	}
	for _, l := range logs {
		row := []string{
			l.Website,
			l.Company,
			l.Domain,
			string(l.Status),
			l.Description,
			strconv.Itoa(l.Retries),
			formatAttempt(l.AttemptedAt),
			formatStatusCode(l.StatusCode),
			formatResponseTime(l.ResponseTime),
			l.HeadersSent,
			l.HeadersReceived,
			l.PageTitle,
			strconv.Itoa(l.ContentLength),
			strconv.Itoa(l.LinkCount),
			strconv.Itoa(l.PDFCount),
			l.FirstPDFURL,
			l.RedirectedURL,
			l.UserAgent,
			l.CookiesSent,
			l.CookiesReceived,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write log row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

func formatAttempt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(attemptLayout)
}

func formatStatusCode(code *int) string {
	if code == nil {
		return ""
	}
	return strconv.Itoa(*code)
}

// formatResponseTime renders seconds with two decimals.
func formatResponseTime(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64)
}
