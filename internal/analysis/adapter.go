// Package analysis turns scraped company text into sales-research summaries by
// way of an external text-generation capability.
package analysis

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/company-signals/internal/crawler"
	"github.com/JakeFAU/company-signals/internal/metrics"
)

// DefaultWordBudget is the number of tokens kept before prompting.
const DefaultWordBudget = 50000

// Summarizer generates text for a fully rendered prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// TransientError marks a summarizer failure as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Config controls truncation, pacing and retries of analysis calls.
type Config struct {
	WordBudget int
	// RequestsPerSecond is a global limit across all calls. Set to <=0 to disable.
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	// MaxRetries counts extra attempts after a transient failure.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.WordBudget == 0 {
		c.WordBudget = DefaultWordBudget
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	return c
}

// Analyzer wraps a Summarizer with truncation, rate limiting and retries.
type Analyzer struct {
	summarizer Summarizer
	cfg        Config
	limiter    *rate.Limiter
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// New constructs an Analyzer.
func New(summarizer Summarizer, cfg Config, logger *zap.Logger) *Analyzer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Analyzer{
		summarizer: summarizer,
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Analyze truncates text to the word budget, renders the prompt and returns the
// summarizer's answer verbatim. Empty text is still sent.
func (a *Analyzer) Analyze(ctx context.Context, text string) (string, error) {
	prompt := BuildPrompt(LimitWords(text, a.cfg.WordBudget))
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := a.call(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if !isTransient(err) || attempt >= a.cfg.MaxRetries {
			return "", err
		}
		wait := backoffSleep(a.cfg.BackoffInitial, a.cfg.BackoffMax, 0.2, attempt)
		a.logger.Warn("transient analysis failure; retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := a.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func (a *Analyzer) call(ctx context.Context, prompt string) (string, error) {
	if a.cfg.RequestTimeout <= 0 {
		return a.summarizer.Summarize(ctx, prompt)
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	return a.summarizer.Summarize(reqCtx, prompt)
}

// AnalyzeProfile analyzes the page text and the PDF text independently. The
// first failure is recorded in Signals.Error and the other source is still tried.
func (a *Analyzer) AnalyzeProfile(ctx context.Context, profile crawler.Profile) crawler.Signals {
	var signals crawler.Signals
	var errs []error

	page, err := a.analyzeSource(ctx, "page", profile.PageText)
	if err != nil {
		errs = append(errs, err)
	}
	signals.PageAnalysis = page

	pdf, err := a.analyzeSource(ctx, "pdf", profile.PDFText)
	if err != nil {
		errs = append(errs, err)
	}
	signals.PDFAnalysis = pdf

	if err := errors.Join(errs...); err != nil {
		signals.Error = err.Error()
		a.logger.Warn("analysis failed",
			zap.String("company", profile.Company),
			zap.String("website", profile.Website),
			zap.Error(err),
		)
	}
	return signals
}

func (a *Analyzer) analyzeSource(ctx context.Context, source, text string) (string, error) {
	start := time.Now()
	out, err := a.Analyze(ctx, text)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveAnalysisCall(source, outcome, time.Since(start))
	if err != nil {
		return "", &SourceError{Source: source, Err: err}
	}
	return out, nil
}

// SourceError identifies which text source an analysis failure belongs to.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return e.Source + " analysis: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, maxWait time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < maxWait; i++ {
		sleep *= 2
		if sleep > maxWait {
			sleep = maxWait
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
