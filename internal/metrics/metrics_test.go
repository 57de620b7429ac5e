package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchAttemptsTotal == nil || scrapesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFetchAttempt(t *testing.T) {
	Init()
	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("fetch-test.com", "status"))
	ObserveFetchAttempt("https://Fetch-Test.com/about", "status", 128)
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("fetch-test.com", "status")); got != before+1 {
		t.Errorf("expected fetch attempts to grow by 1, got %f -> %f", before, got)
	}
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("fetch-test.com")); got < 128 {
		t.Errorf("expected at least 128 bytes recorded, got %f", got)
	}
}

func TestObserveScrapeAndAnalysis(t *testing.T) {
	Init()
	before := testutil.ToFloat64(scrapesTotal.WithLabelValues("Failed"))
	ObserveScrape("Failed")
	if got := testutil.ToFloat64(scrapesTotal.WithLabelValues("Failed")); got != before+1 {
		t.Errorf("expected scrape counter to grow by 1, got %f -> %f", before, got)
	}

	ObserveAnalysisCall("page", "ok", 10*time.Millisecond)
	if got := testutil.ToFloat64(analysisCallsTotal.WithLabelValues("page", "ok")); got < 1 {
		t.Errorf("expected analysis call recorded, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
