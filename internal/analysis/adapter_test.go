package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

// fakeSummarizer returns scripted errors first, then echoes a marker for the prompt.
type fakeSummarizer struct {
	mu      sync.Mutex
	errs    []error
	prompts []string
	failOn  string
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return "", errors.New("model refused")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return "summary", nil
}

func newTestAnalyzer(s Summarizer, cfg Config) (*Analyzer, *[]time.Duration) {
	a := New(s, cfg, nil)
	var slept []time.Duration
	a.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return a, &slept
}

func TestAnalyzeTruncatesBeforePrompting(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{}
	a, _ := newTestAnalyzer(fake, Config{WordBudget: 3})

	out, err := a.Analyze(context.Background(), "one two three four five")
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "### Scraped Text:\none two three\n")
	assert.NotContains(t, fake.prompts[0], "four")
}

func TestAnalyzeSendsEmptyText(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{}
	a, _ := newTestAnalyzer(fake, Config{})

	_, err := a.Analyze(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, fake.prompts, 1)
}

func TestAnalyzeRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{errs: []error{
		&TransientError{Err: errors.New("429")},
		&TransientError{Err: errors.New("503")},
	}}
	a, slept := newTestAnalyzer(fake, Config{MaxRetries: 2})

	out, err := a.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.Len(t, fake.prompts, 3)
	assert.Len(t, *slept, 2)
}

func TestAnalyzeGivesUpOnPermanentErrors(t *testing.T) {
	t.Parallel()

	permanent := errors.New("invalid api key")
	fake := &fakeSummarizer{errs: []error{permanent}}
	a, slept := newTestAnalyzer(fake, Config{MaxRetries: 3})

	_, err := a.Analyze(context.Background(), "text")
	require.ErrorIs(t, err, permanent)
	assert.Len(t, fake.prompts, 1)
	assert.Empty(t, *slept)
}

func TestAnalyzeHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{}
	a, _ := newTestAnalyzer(fake, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "text")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.prompts)
}

func TestAnalyzeProfileIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	fake := &fakeSummarizer{failOn: "PDF BODY"}
	a, _ := newTestAnalyzer(fake, Config{})

	signals := a.AnalyzeProfile(context.Background(), crawler.Profile{
		Company:  "Acme",
		PageText: "PAGE BODY",
		PDFText:  "PDF BODY",
	})
	assert.Equal(t, "summary", signals.PageAnalysis)
	assert.Empty(t, signals.PDFAnalysis)
	assert.Contains(t, signals.Error, "pdf analysis: model refused")
	assert.Len(t, fake.prompts, 2)
}

func TestBackoffSleepCaps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, backoffSleep(time.Second, 4*time.Second, 0, 0))
	assert.Equal(t, 4*time.Second, backoffSleep(time.Second, 4*time.Second, 0, 2))
	assert.Equal(t, 4*time.Second, backoffSleep(time.Second, 4*time.Second, 0, 10))
}
