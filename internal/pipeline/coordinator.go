// Package pipeline coordinates a run: concurrent scraping of every target
// followed by strictly sequential analysis of the resulting profiles.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/crawler"
	"github.com/JakeFAU/company-signals/internal/metrics"
	"github.com/JakeFAU/company-signals/internal/progress"
)

// Concurrency bounds.
const (
	DefaultConcurrency = 5
	MaxConcurrency     = 20
)

// ErrInvalidConcurrency is returned for worker counts outside 1..MaxConcurrency.
var ErrInvalidConcurrency = errors.New("pipeline: concurrency must be between 1 and 20")

// TargetScraper produces an optional profile and exactly one log record per target.
type TargetScraper interface {
	Scrape(ctx context.Context, target crawler.Target) (*crawler.Profile, crawler.LogRecord)
}

// ProfileAnalyzer derives signals from a scraped profile.
type ProfileAnalyzer interface {
	AnalyzeProfile(ctx context.Context, profile crawler.Profile) crawler.Signals
}

// Config controls the coordinator.
type Config struct {
	Concurrency int
}

// Coordinator runs targets through the scraper pool and the analyzer.
type Coordinator struct {
	scraper  TargetScraper
	analyzer ProfileAnalyzer
	emitter  progress.Emitter
	clock    crawler.Clock
	ids      crawler.IDGenerator
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Coordinator. analyzer may be nil, in which case profiles
// leave the run without signals. emitter may be nil.
func New(
	scraper TargetScraper,
	analyzer ProfileAnalyzer,
	emitter progress.Emitter,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) (*Coordinator, error) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency < 1 || cfg.Concurrency > MaxConcurrency {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}
	if scraper == nil {
		return nil, errors.New("pipeline: scraper is required")
	}
	if ids == nil {
		return nil, errors.New("pipeline: id generator is required")
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		scraper:  scraper,
		analyzer: analyzer,
		emitter:  emitter,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run scrapes every target and then analyzes the profiles one at a time. Logs
// are returned in completion order and always number len(targets).
func (c *Coordinator) Run(ctx context.Context, targets []crawler.Target) (crawler.Run, error) {
	id, err := c.ids.NewID()
	if err != nil {
		metrics.ObserveRun("error")
		return crawler.Run{}, fmt.Errorf("generate run id: %w", err)
	}
	runID := progress.ParseRunID(id)
	run := crawler.Run{ID: id, StartedAt: c.clock.Now()}
	logger := c.logger.With(zap.String("run_id", id))

	c.emitter.Emit(progress.Event{
		RunID:     runID,
		TS:        run.StartedAt,
		Stage:     progress.StageRunStart,
		Total:     int64(len(targets)),
		Remaining: int64(len(targets)),
	})
	logger.Info("run started", zap.Int("targets", len(targets)), zap.Int("concurrency", c.cfg.Concurrency))

	run.Profiles, run.Logs = c.scrapeAll(ctx, runID, targets)
	c.analyzeAll(ctx, runID, run.Profiles, logger)

	run.FinishedAt = c.clock.Now()
	counts := run.Counts()
	c.emitter.Emit(progress.Event{
		RunID: runID,
		TS:    run.FinishedAt,
		Stage: progress.StageRunDone,
		Total: int64(len(targets)),
		Dur:   nonNegative(run.FinishedAt.Sub(run.StartedAt)),
	})
	metrics.ObserveRun("success")
	logger.Info("run finished",
		zap.Int("succeeded", counts.Succeeded),
		zap.Int("failed", counts.Failed),
		zap.Int("errored", counts.Errored),
		zap.Int("profiles", counts.Profiles),
		zap.Int("analysis_errors", counts.AnalysisErrors),
	)
	return run, nil
}

type completion struct {
	target  crawler.Target
	profile *crawler.Profile
	record  crawler.LogRecord
	dur     time.Duration
}

// scrapeAll fans targets out to the worker pool and collects completions on
// this goroutine, so the result lists need no locking.
func (c *Coordinator) scrapeAll(
	ctx context.Context,
	runID [16]byte,
	targets []crawler.Target,
) ([]crawler.Profile, []crawler.LogRecord) {
	profiles := make([]crawler.Profile, 0, len(targets))
	logs := make([]crawler.LogRecord, 0, len(targets))
	if len(targets) == 0 {
		return profiles, logs
	}

	jobs := make(chan crawler.Target)
	done := make(chan completion, c.cfg.Concurrency)

	var wg sync.WaitGroup
	for range min(c.cfg.Concurrency, len(targets)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				done <- c.scrapeOne(ctx, t)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range targets {
			jobs <- t
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	remaining := len(targets)
	for res := range done {
		remaining--
		logs = append(logs, res.record)
		if res.profile != nil {
			profiles = append(profiles, *res.profile)
		}
		c.emitter.Emit(progress.Event{
			RunID:       runID,
			TS:          c.clock.Now(),
			Stage:       progress.StageTargetDone,
			Site:        metrics.SanitizeSite(res.target.Website),
			Company:     res.target.Company,
			Outcome:     string(res.record.Status),
			StatusClass: progress.ClassifyStatus(res.record.StatusCode),
			Total:       int64(len(targets)),
			Remaining:   int64(remaining),
			Dur:         res.dur,
		})
	}
	return profiles, logs
}

// scrapeOne runs a single target, converting a panic into an Error record.
func (c *Coordinator) scrapeOne(ctx context.Context, target crawler.Target) (res completion) {
	start := c.clock.Now()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("scrape panicked",
				zap.String("company", target.Company),
				zap.String("website", target.Website),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			metrics.ObserveScrape(string(crawler.StatusError))
			res = completion{
				target: target,
				record: crawler.ErrorRecord(target, start, fmt.Sprintf("panic: %v", r)),
				dur:    nonNegative(c.clock.Now().Sub(start)),
			}
		}
	}()

	profile, record := c.scraper.Scrape(ctx, target)
	return completion{
		target:  target,
		profile: profile,
		record:  record,
		dur:     nonNegative(c.clock.Now().Sub(start)),
	}
}

// analyzeAll attaches signals to each profile in collection order, one call at
// a time. A failure is confined to the profile it happened on.
func (c *Coordinator) analyzeAll(ctx context.Context, runID [16]byte, profiles []crawler.Profile, logger *zap.Logger) {
	if c.analyzer == nil || len(profiles) == 0 {
		return
	}
	c.emitter.Emit(progress.Event{
		RunID:     runID,
		TS:        c.clock.Now(),
		Stage:     progress.StageAnalysisStart,
		Total:     int64(len(profiles)),
		Remaining: int64(len(profiles)),
	})
	for i := range profiles {
		signals := c.analyzeOne(ctx, profiles[i], logger)
		profiles[i].Signals = &signals
		c.emitter.Emit(progress.Event{
			RunID:     runID,
			TS:        c.clock.Now(),
			Stage:     progress.StageProfileDone,
			Company:   profiles[i].Company,
			Total:     int64(len(profiles)),
			Remaining: int64(len(profiles) - i - 1),
			Note:      signals.Error,
		})
	}
}

func (c *Coordinator) analyzeOne(ctx context.Context, profile crawler.Profile, logger *zap.Logger) (signals crawler.Signals) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis panicked",
				zap.String("company", profile.Company),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			signals = crawler.Signals{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return c.analyzer.AnalyzeProfile(ctx, profile)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}
