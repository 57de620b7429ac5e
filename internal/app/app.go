// Package app builds the long-lived services for a process and runs input
// files or uploads through them.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/analysis"
	"github.com/JakeFAU/company-signals/internal/analysis/gemini"
	"github.com/JakeFAU/company-signals/internal/clock/system"
	"github.com/JakeFAU/company-signals/internal/config"
	"github.com/JakeFAU/company-signals/internal/crawler"
	collyfetcher "github.com/JakeFAU/company-signals/internal/fetcher/colly"
	"github.com/JakeFAU/company-signals/internal/id/uuid"
	"github.com/JakeFAU/company-signals/internal/input"
	"github.com/JakeFAU/company-signals/internal/metrics"
	"github.com/JakeFAU/company-signals/internal/output"
	"github.com/JakeFAU/company-signals/internal/pipeline"
	"github.com/JakeFAU/company-signals/internal/policy/ratelimit"
	"github.com/JakeFAU/company-signals/internal/progress"
	progresssinks "github.com/JakeFAU/company-signals/internal/progress/sinks"
	"github.com/JakeFAU/company-signals/internal/publisher"
	memorypublisher "github.com/JakeFAU/company-signals/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/company-signals/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/company-signals/internal/storage/gcs"
	localstorage "github.com/JakeFAU/company-signals/internal/storage/local"
	memorystorage "github.com/JakeFAU/company-signals/internal/storage/memory"
	pgstore "github.com/JakeFAU/company-signals/internal/storage/postgres"
)

// ErrInvalidInput marks failures caused by the submitted CSV rather than the service.
var ErrInvalidInput = errors.New("invalid input")

const archiveContentType = "application/zip"

// Result describes one processed input.
type Result struct {
	Run crawler.Run
	// Input reports how many rows were dropped during validation.
	Input input.Result
	// ArchivePath is set when the archive was written to disk.
	ArchivePath string
	// Archive holds the zip bytes when the archive was built in memory.
	Archive []byte
	// ArchiveURI is set when the archive was uploaded to a blob store.
	ArchiveURI string
}

// App contains the process-wide dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	coordinator *pipeline.Coordinator
	bundle      output.Bundle
	blobs       crawler.BlobStore
	logStore    crawler.LogStore
	publisher   crawler.Publisher
	hub         *progress.Hub
	closers     []func() error
}

// Build wires every component named by cfg. Options replace individual
// collaborators, mainly for tests.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer, clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	a := &App{
		cfg:    cfg,
		logger: logger,
		bundle: output.Bundle{
			Dir:              cfg.Output.Dir,
			ProfilesName:     cfg.Output.ProfilesName,
			LogsName:         cfg.Output.LogsName,
			ArchiveName:      cfg.Output.ArchiveName,
			KeepIntermediate: cfg.Output.KeepIntermediate,
		},
	}
	logger.Info("building application dependencies",
		zap.Int("concurrency", cfg.Crawler.Concurrency),
		zap.Bool("analysis", cfg.Analysis.Enabled),
		zap.String("storage", cfg.Storage.Backend),
	)

	steps := []func(context.Context, *options) error{
		a.setupStorage,
		a.setupLogStore,
		a.setupPublisher,
		a.setupProgress,
		a.setupCoordinator,
	}
	for _, step := range steps {
		if err := step(ctx, &o); err != nil {
			if cerr := a.Close(context.Background()); cerr != nil {
				logger.Warn("cleanup after failed build", zap.Error(cerr))
			}
			return nil, err
		}
	}
	return a, nil
}

func (a *App) setupStorage(ctx context.Context, o *options) error {
	if o.blobs != nil {
		a.blobs = o.blobs
		return nil
	}
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.blobs = store
		a.closers = append(a.closers, store.Close)
		a.logger.Info("archives upload to gcs", zap.String("bucket", a.cfg.Storage.GCSBucket))
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{
			BaseDir: filepath.Join(a.cfg.Storage.LocalDir, a.cfg.Storage.Prefix),
		})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobs = store
		a.logger.Info("archives copy to local directory", zap.String("path", a.cfg.Storage.LocalDir))
	case config.StorageMemory:
		a.blobs = memorystorage.NewBlobStore()
		a.logger.Info("archives kept in memory")
	default:
		a.logger.Debug("archive upload disabled")
	}
	return nil
}

func (a *App) setupLogStore(ctx context.Context, o *options) error {
	if o.logStore != nil {
		a.logStore = o.logStore
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no database dsn; log records are only written to csv")
		return nil
	}
	store, err := pgstore.NewLogStore(ctx, pgstore.LogStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: minutes(a.cfg.DB.MaxConnLifetimeMinutes),
	})
	if err != nil {
		return fmt.Errorf("log store init failed: %w", err)
	}
	a.logStore = store
	a.closers = append(a.closers, store.Close)
	a.logger.Info("log store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context, o *options) error {
	if o.publisher != nil {
		a.publisher = o.publisher
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Debug("no pub/sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub, err := gcppublisher.Open(ctx, client, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	a.logger.Info("pub/sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context, o *options) error {
	promSink, err := progresssinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		BaseContext: context.WithoutCancel(ctx),
		Logger:      a.logger.Named("progress_hub"),
	}, progresssinks.NewLogSink(a.logger.Named("progress")), promSink)
	return nil
}

func (a *App) setupCoordinator(ctx context.Context, o *options) error {
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:   a.cfg.Crawler.UserAgent,
			Timeout:     a.cfg.FetchTimeout(),
			MaxBodySize: a.cfg.Crawler.MaxBodyBytes,
		})
	}

	var limiter crawler.Limiter
	if a.cfg.Crawler.RateLimitRPS > 0 || len(a.cfg.Crawler.PerHost) > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Crawler.RateLimitRPS,
			DefaultBurst: a.cfg.Crawler.RateLimitBurst,
			PerHost:      a.cfg.PerHostRPS(),
		})
		a.logger.Info("fetch rate limiting enabled", zap.Float64("default_rps", a.cfg.Crawler.RateLimitRPS))
	}

	pages := crawler.NewPageFetcher(
		fetcher,
		limiter,
		crawler.NewExponentialRetryPolicyWithBase(a.cfg.HTTP.MaxRetries, a.cfg.BackoffBase()),
		o.clock,
		crawler.PageFetcherConfig{UserAgent: a.cfg.Crawler.UserAgent, Timeout: a.cfg.FetchTimeout()},
		a.logger.Named("fetch"),
	)
	scraper := crawler.NewScraper(pages, a.logger.Named("scraper"))

	var analyzer pipeline.ProfileAnalyzer
	if a.cfg.Analysis.Enabled {
		an, err := a.buildAnalyzer(ctx, o)
		if err != nil {
			return err
		}
		analyzer = an
	}

	coordinator, err := pipeline.New(
		scraper,
		analyzer,
		a.hub,
		o.clock,
		uuid.New(),
		pipeline.Config{Concurrency: a.cfg.Crawler.Concurrency},
		a.logger.Named("pipeline"),
	)
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}
	a.coordinator = coordinator
	return nil
}

func (a *App) buildAnalyzer(ctx context.Context, o *options) (*analysis.Analyzer, error) {
	summarizer := o.summarizer
	if summarizer == nil {
		strategy, err := analysis.StrategyByName(a.cfg.Analysis.KeyStrategy)
		if err != nil {
			return nil, fmt.Errorf("analysis key strategy: %w", err)
		}
		pool, err := analysis.NewCredentialPool(a.cfg.Analysis.APIKeys, strategy)
		if err != nil {
			return nil, fmt.Errorf("analysis credentials: %w", err)
		}
		gs, err := gemini.New(ctx, gemini.Config{
			APIKey:          pool.Next(),
			Model:           a.cfg.Analysis.Model,
			BaseURL:         a.cfg.Analysis.BaseURL,
			Temperature:     a.cfg.Analysis.Temperature,
			TopP:            a.cfg.Analysis.TopP,
			TopK:            a.cfg.Analysis.TopK,
			MaxOutputTokens: a.cfg.Analysis.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini init failed: %w", err)
		}
		a.logger.Info("analysis model ready", zap.String("model", gs.Model()), zap.Int("keys", pool.Len()))
		summarizer = gs
	}
	return analysis.New(summarizer, analysis.Config{
		WordBudget:        a.cfg.Analysis.WordBudget,
		RequestsPerSecond: a.cfg.Analysis.RequestsPerSecond,
		RequestTimeout:    seconds(a.cfg.Analysis.RequestTimeoutSeconds),
		MaxRetries:        a.cfg.Analysis.MaxRetries,
		BackoffInitial:    millis(a.cfg.Analysis.BackoffInitialMs),
		BackoffMax:        millis(a.cfg.Analysis.BackoffMaxMs),
	}, a.logger.Named("analysis")), nil
}

// ProcessFile reads targets from a CSV file, runs them and writes the archive
// into the output directory.
func (a *App) ProcessFile(ctx context.Context, path string) (Result, error) {
	in, err := input.ReadTargetsFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	res := Result{Input: in}
	res.Run, err = a.execute(ctx, in)
	if err != nil {
		return res, err
	}

	res.ArchivePath, err = a.bundle.Write(res.Run)
	if err != nil {
		return res, fmt.Errorf("write archive: %w", err)
	}
	a.logger.Info("archive written", zap.String("path", res.ArchivePath))

	res.ArchiveURI = a.uploadFile(ctx, res.Run.ID, res.ArchivePath)
	a.notify(ctx, res)
	return res, nil
}

// Process reads targets from r, runs them and builds the archive in memory.
func (a *App) Process(ctx context.Context, r io.Reader) (Result, error) {
	in, err := input.ReadTargets(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	res := Result{Input: in}
	res.Run, err = a.execute(ctx, in)
	if err != nil {
		return res, err
	}

	res.Archive, err = a.bundle.Archive(res.Run)
	if err != nil {
		return res, fmt.Errorf("build archive: %w", err)
	}
	res.ArchiveURI = a.upload(ctx, res.Run.ID, bytes.NewReader(res.Archive))
	a.notify(ctx, res)
	return res, nil
}

// ArchiveName is the file name used for archives.
func (a *App) ArchiveName() string {
	if a.cfg.Output.ArchiveName == "" {
		return output.DefaultArchiveName
	}
	return a.cfg.Output.ArchiveName
}

func (a *App) execute(ctx context.Context, in input.Result) (crawler.Run, error) {
	if in.Blank > 0 || in.InvalidURL > 0 {
		a.logger.Info("dropped input rows",
			zap.Int("blank", in.Blank),
			zap.Int("invalid_url", in.InvalidURL),
		)
	}
	run, err := a.coordinator.Run(ctx, in.Targets)
	if err != nil {
		return run, fmt.Errorf("run pipeline: %w", err)
	}
	if a.logStore != nil {
		if err := a.logStore.StoreLogs(ctx, run.ID, run.Logs); err != nil {
			a.logger.Warn("persist log records failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return run, nil
}

func (a *App) uploadFile(ctx context.Context, runID, archivePath string) string {
	if a.blobs == nil {
		return ""
	}
	f, err := os.Open(archivePath) //nolint:gosec // path produced by output.Bundle
	if err != nil {
		a.logger.Warn("open archive for upload failed", zap.Error(err))
		return ""
	}
	defer func() {
		_ = f.Close()
	}()
	return a.upload(ctx, runID, f)
}

func (a *App) upload(ctx context.Context, runID string, r io.Reader) string {
	if a.blobs == nil {
		return ""
	}
	uri, err := a.blobs.PutObject(ctx, path.Join(runID, a.ArchiveName()), archiveContentType, r)
	if err != nil {
		a.logger.Warn("archive upload failed", zap.String("run_id", runID), zap.Error(err))
		return ""
	}
	a.logger.Info("archive uploaded", zap.String("run_id", runID), zap.String("uri", uri))
	return uri
}

func (a *App) notify(ctx context.Context, res Result) {
	if a.publisher == nil {
		return
	}
	evt := publisher.NewRunCompleted(res.Run, res.ArchiveURI)
	id, err := a.publisher.Publish(ctx, publisher.EventRunCompleted, evt)
	if err != nil {
		a.logger.Warn("run notification failed", zap.String("run_id", res.Run.ID), zap.Error(err))
		return
	}
	a.logger.Debug("run notification published", zap.String("message_id", id))
}

// Close flushes progress and releases clients in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
