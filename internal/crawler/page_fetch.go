package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/metrics"
)

const (
	descriptionSuccess  = "Website scraped successfully"
	descriptionTimedOut = "Request timed out"
)

// PageFetcherConfig controls the identity and timing of page requests.
type PageFetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// PageFetcher wraps a Fetcher with the bounded retry loop used for company pages.
type PageFetcher struct {
	fetcher Fetcher
	limiter Limiter
	retry   RetryPolicy
	clock   Clock
	cfg     PageFetcherConfig
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewPageFetcher constructs a PageFetcher. limiter may be nil.
func NewPageFetcher(
	fetcher Fetcher,
	limiter Limiter,
	retry RetryPolicy,
	clock Clock,
	cfg PageFetcherConfig,
	logger *zap.Logger,
) *PageFetcher {
	if retry == nil {
		retry = NewExponentialRetryPolicy(3)
	}
	if clock == nil {
		clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{
		fetcher: fetcher,
		limiter: limiter,
		retry:   retry,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// FetchPage GETs rawURL up to MaxAttempts times. It never returns an error:
// the outcome is described by the LogRecord. Any non-200 status and any
// transport error is retried after an exponential backoff, including after the
// last attempt. The returned body is empty unless a 200 was received.
func (p *PageFetcher) FetchPage(ctx context.Context, rawURL string) ([]byte, *FetchResponse, LogRecord) {
	headers := p.requestHeaders()
	var jar []*http.Cookie
	start := p.clock.Now()
	record := LogRecord{
		Website:     rawURL,
		Domain:      domainOf(rawURL),
		AttemptedAt: start,
		HeadersSent: snapshotHeaders(headers),
		UserAgent:   p.cfg.UserAgent,
		CookiesSent: snapshotCookies(jar),
	}

	var last *FetchResponse
	retries := 0
	for retries < p.retry.MaxAttempts() {
		if err := p.wait(ctx, rawURL); err != nil {
			record.Status = StatusError
			record.Description = err.Error()
			return nil, last, record
		}

		resp, err := p.fetcher.Fetch(ctx, FetchRequest{
			URL:     rawURL,
			Headers: headers.Clone(),
			Cookies: jar,
			Timeout: p.cfg.Timeout,
		})
		if err != nil {
			record.Status = StatusError
			record.Description = describeFetchError(err)
			metrics.ObserveFetchAttempt(rawURL, attemptOutcome(err), 0)
		} else {
			last = &resp
			elapsed := p.clock.Now().Sub(start)
			record.StatusCode = intPtr(resp.StatusCode)
			record.ResponseTime = &elapsed
			record.HeadersReceived = snapshotHeaders(resp.Headers)
			record.CookiesReceived = snapshotCookies(resp.Cookies)
			if len(resp.RequestHeaders) > 0 {
				record.HeadersSent = snapshotHeaders(resp.RequestHeaders)
			}
			if resp.StatusCode == http.StatusOK {
				metrics.ObserveFetchAttempt(rawURL, "success", len(resp.Body))
				record.Status = StatusSuccess
				record.Description = descriptionSuccess
				record.RedirectedURL = NotAvailable
				if resp.Redirected {
					record.RedirectedURL = resp.FinalURL
				}
				return resp.Body, last, record
			}
			metrics.ObserveFetchAttempt(rawURL, "status", len(resp.Body))
			record.Status = StatusFailed
			record.Description = fmt.Sprintf("Received %d response", resp.StatusCode)
		}

		retries++
		record.Retries = retries
		backoff := p.retry.Backoff(retries)
		p.logger.Debug("page fetch attempt failed",
			zap.String("url", rawURL),
			zap.String("status", string(record.Status)),
			zap.String("description", record.Description),
			zap.Int("retries", retries),
			zap.Duration("backoff", backoff),
		)
		if err := p.sleep(ctx, backoff); err != nil {
			p.logger.Debug("page fetch abandoned", zap.String("url", rawURL), zap.Error(err))
			return nil, last, record
		}
	}
	return nil, last, record
}

// FetchDocument performs exactly one GET, used for linked documents. Statuses
// of 400 and above are reported as errors.
func (p *PageFetcher) FetchDocument(ctx context.Context, rawURL string) (FetchResponse, error) {
	if err := p.wait(ctx, rawURL); err != nil {
		return FetchResponse{}, err
	}
	resp, err := p.fetcher.Fetch(ctx, FetchRequest{
		URL:     rawURL,
		Headers: p.requestHeaders(),
		Timeout: p.cfg.Timeout,
	})
	if err != nil {
		return FetchResponse{}, fmt.Errorf("fetch document %s: %w", rawURL, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return FetchResponse{}, fmt.Errorf("fetch document %s: status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}

func (p *PageFetcher) requestHeaders() http.Header {
	headers := http.Header{}
	if p.cfg.UserAgent != "" {
		headers.Set("User-Agent", p.cfg.UserAgent)
	}
	return headers
}

func (p *PageFetcher) wait(ctx context.Context, rawURL string) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func describeFetchError(err error) string {
	if IsTimeout(err) {
		return descriptionTimedOut
	}
	return err.Error()
}

func attemptOutcome(err error) string {
	if IsTimeout(err) {
		return "timeout"
	}
	return "error"
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now().UTC()
}
