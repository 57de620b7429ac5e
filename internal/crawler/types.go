// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Status is the terminal outcome recorded for one scrape attempt.
type Status string

// Scrape status values written to the log table.
const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusError   Status = "Error"
)

// NotAvailable is the sentinel written for absent titles, PDF URLs and redirects.
const NotAvailable = "N/A"

// Target is one company/website pair taken from a validated input row.
type Target struct {
	Company   string `json:"company"`
	Website   string `json:"website"`
	PersonRef string `json:"person_ref"`
}

// LogRecord captures everything observed while scraping one target. Exactly one
// record is produced per target, including total failures.
type LogRecord struct {
	Website         string         `json:"website"`
	Company         string         `json:"company"`
	Domain          string         `json:"domain"`
	Status          Status         `json:"status"`
	Description     string         `json:"description"`
	Retries         int            `json:"retries"`
	AttemptedAt     time.Time      `json:"attempted_at"`
	StatusCode      *int           `json:"status_code,omitempty"`
	ResponseTime    *time.Duration `json:"response_time,omitempty"`
	HeadersSent     string         `json:"headers_sent"`
	HeadersReceived string         `json:"headers_received"`
	PageTitle       string         `json:"page_title"`
	ContentLength   int            `json:"content_length"`
	LinkCount       int            `json:"link_count"`
	PDFCount        int            `json:"pdf_count"`
	FirstPDFURL     string         `json:"first_pdf_url"`
	RedirectedURL   string         `json:"redirected_url"`
	UserAgent       string         `json:"user_agent"`
	CookiesSent     string         `json:"cookies_sent"`
	CookiesReceived string         `json:"cookies_received"`
}

// Succeeded reports whether the record is terminal with StatusSuccess.
func (r LogRecord) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Signals holds the analysis output attached to a profile after the analysis phase.
// Error is set when the analysis capability failed for this profile.
type Signals struct {
	PageAnalysis string `json:"page_analysis"`
	PDFAnalysis  string `json:"pdf_analysis"`
	Error        string `json:"error,omitempty"`
}

// Profile is produced only for targets whose page yielded non-empty text.
type Profile struct {
	Company   string   `json:"company"`
	Website   string   `json:"website"`
	PersonRef string   `json:"person_ref"`
	PageText  string   `json:"page_text"`
	PDFText   string   `json:"pdf_text"`
	Signals   *Signals `json:"signals,omitempty"`
}

// Run aggregates the results of a single pipeline execution. Logs are in
// completion order; Profiles follow the same order restricted to successes.
type Run struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Profiles   []Profile   `json:"profiles"`
	Logs       []LogRecord `json:"logs"`
}

// Counts summarizes a run for notifications and API responses.
func (r Run) Counts() RunCounts {
	c := RunCounts{Targets: len(r.Logs), Profiles: len(r.Profiles)}
	for _, l := range r.Logs {
		switch l.Status {
		case StatusSuccess:
			c.Succeeded++
		case StatusFailed:
			c.Failed++
		default:
			c.Errored++
		}
	}
	for _, p := range r.Profiles {
		if p.Signals != nil && p.Signals.Error != "" {
			c.AnalysisErrors++
		}
	}
	return c
}

// RunCounts is a compact tally of run outcomes.
type RunCounts struct {
	Targets        int `json:"targets"`
	Profiles       int `json:"profiles"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	Errored        int `json:"errored"`
	AnalysisErrors int `json:"analysis_errors"`
}

// FetchRequest captures everything needed to issue one GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Cookies []*http.Cookie
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation for one attempt.
type FetchResponse struct {
	URL            string
	FinalURL       string
	Redirected     bool
	StatusCode     int
	Headers        http.Header
	RequestHeaders http.Header
	Cookies        []*http.Cookie
	Body           []byte
	Duration       time.Duration
}
