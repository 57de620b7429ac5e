package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/company-signals/internal/analysis"
	"github.com/JakeFAU/company-signals/internal/crawler"
)

type options struct {
	fetcher    crawler.Fetcher
	summarizer analysis.Summarizer
	blobs      crawler.BlobStore
	logStore   crawler.LogStore
	publisher  crawler.Publisher
	registerer prometheus.Registerer
	clock      crawler.Clock
}

// Option overrides one collaborator built by Build.
type Option func(*options)

// WithFetcher replaces the colly fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithSummarizer replaces the Gemini summarizer. No API keys are needed.
func WithSummarizer(s analysis.Summarizer) Option {
	return func(o *options) { o.summarizer = s }
}

// WithBlobStore replaces the configured archive store.
func WithBlobStore(b crawler.BlobStore) Option {
	return func(o *options) { o.blobs = b }
}

// WithLogStore replaces the Postgres log store.
func WithLogStore(s crawler.LogStore) Option {
	return func(o *options) { o.logStore = s }
}

// WithPublisher replaces the run notification publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRegisterer registers progress collectors somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock replaces the wall clock.
func WithClock(c crawler.Clock) Option {
	return func(o *options) { o.clock = c }
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
