// Package config loads and validates configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/company-signals/internal/analysis"
	"github.com/JakeFAU/company-signals/internal/pipeline"
)

// EnvPrefix namespaces environment overrides, e.g. SIGNALS_CRAWLER_CONCURRENCY.
const EnvPrefix = "SIGNALS"

// DefaultUserAgent is sent on every page and PDF request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// legacyKeyVars are read when analysis.api_keys is empty.
var legacyKeyVars = []string{"API_KEY1", "API_KEY2", "API_KEY3", "API_KEY4", "API_KEY5"}

// dotEnvFiles are loaded, when present, before the environment is read.
var dotEnvFiles = []string{".env.local", ".env"}

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                int `mapstructure:"port"`
	MaxUploadBytes      int `mapstructure:"max_upload_bytes"`
	ShutdownTimeoutSecs int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the scraping pool and fetch identity.
type CrawlerConfig struct {
	Concurrency    int        `mapstructure:"concurrency"`
	UserAgent      string     `mapstructure:"user_agent"`
	MaxBodyBytes   int        `mapstructure:"max_body_bytes"`
	RateLimitRPS   float64    `mapstructure:"rate_limit_rps"`
	RateLimitBurst int        `mapstructure:"rate_limit_burst"`
	PerHost        []HostRate `mapstructure:"per_host"`
}

// HostRate overrides the fetch rate for one host.
type HostRate struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// HTTPConfig configures the page retry loop.
type HTTPConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
}

// AnalysisConfig configures the language-model phase.
type AnalysisConfig struct {
	Enabled               bool     `mapstructure:"enabled"`
	APIKeys               []string `mapstructure:"api_keys"`
	KeyStrategy           string   `mapstructure:"key_strategy"`
	Model                 string   `mapstructure:"model"`
	BaseURL               string   `mapstructure:"base_url"`
	WordBudget            int      `mapstructure:"word_budget"`
	RequestsPerSecond     float64  `mapstructure:"requests_per_second"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	MaxRetries            int      `mapstructure:"max_retries"`
	BackoffInitialMs      int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int      `mapstructure:"backoff_max_ms"`
	Temperature           float32  `mapstructure:"temperature"`
	TopP                  float32  `mapstructure:"top_p"`
	TopK                  float32  `mapstructure:"top_k"`
	MaxOutputTokens       int32    `mapstructure:"max_output_tokens"`
}

// OutputConfig names the CSV and archive artifacts.
type OutputConfig struct {
	Dir              string `mapstructure:"dir"`
	ProfilesName     string `mapstructure:"profiles_name"`
	LogsName         string `mapstructure:"logs_name"`
	ArchiveName      string `mapstructure:"archive_name"`
	KeepIntermediate bool   `mapstructure:"keep_intermediate"`
}

// StorageConfig selects where archives are uploaded after a run.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres log store.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for run-complete notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Override adjusts a loaded Config before validation. The CLI uses it for flags.
type Override func(*Config)

// Load builds a Config from .env files, an optional config file and the environment.
func Load(path string, overrides ...Override) (Config, error) {
	if err := loadDotEnv(dotEnvFiles...); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Analysis.APIKeys = cleanKeys(cfg.Analysis.APIKeys)
	if len(cfg.Analysis.APIKeys) == 0 {
		cfg.Analysis.APIKeys = legacyKeys()
	}
	for _, o := range overrides {
		o(&cfg)
	}
	// Zero asks for the pipeline default.
	if cfg.Crawler.Concurrency == 0 {
		cfg.Crawler.Concurrency = pipeline.DefaultConcurrency
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("crawler.concurrency", pipeline.DefaultConcurrency)
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.max_body_bytes", 25<<20)
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_seconds", 1)
	v.SetDefault("analysis.enabled", true)
	v.SetDefault("analysis.api_keys", []string{})
	v.SetDefault("analysis.key_strategy", analysis.StrategyRandom)
	v.SetDefault("analysis.model", "gemini-1.5-flash")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.word_budget", analysis.DefaultWordBudget)
	v.SetDefault("analysis.requests_per_second", 0)
	v.SetDefault("analysis.request_timeout_seconds", 120)
	v.SetDefault("analysis.max_retries", 2)
	v.SetDefault("analysis.backoff_initial_ms", 500)
	v.SetDefault("analysis.backoff_max_ms", 10000)
	v.SetDefault("analysis.temperature", 1.0)
	v.SetDefault("analysis.top_p", 0.95)
	v.SetDefault("analysis.top_k", 64)
	v.SetDefault("analysis.max_output_tokens", 8192)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.profiles_name", "output_profiles.csv")
	v.SetDefault("output.logs_name", "scraping_logs.csv")
	v.SetDefault("output.archive_name", "scraping_output.zip")
	v.SetDefault("output.keep_intermediate", false)
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.local_dir", "archives")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "scrape_logs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.Concurrency < 1 || c.Crawler.Concurrency > pipeline.MaxConcurrency {
		return fmt.Errorf("crawler.concurrency must be between 1 and %d", pipeline.MaxConcurrency)
	}
	for _, h := range c.Crawler.PerHost {
		if h.Host == "" {
			return fmt.Errorf("crawler.per_host entries need a host")
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be >= 1")
	}
	if c.HTTP.BackoffBaseSeconds < 0 {
		return fmt.Errorf("http.backoff_base_seconds must be >= 0")
	}
	if c.Analysis.Enabled {
		if len(c.Analysis.APIKeys) == 0 {
			return fmt.Errorf("analysis.api_keys: %w", analysis.ErrNoCredentials)
		}
		if _, err := analysis.StrategyByName(c.Analysis.KeyStrategy); err != nil {
			return fmt.Errorf("analysis.key_strategy: %w", err)
		}
		if c.Analysis.WordBudget <= 0 {
			return fmt.Errorf("analysis.word_budget must be > 0")
		}
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// FetchTimeout is the per-request page timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PerHostRPS flattens the per-host overrides.
func (c Config) PerHostRPS() map[string]float64 {
	out := make(map[string]float64, len(c.Crawler.PerHost))
	for _, h := range c.Crawler.PerHost {
		out[h.Host] = h.RPS
	}
	return out
}

// BackoffBase is the unit of the page retry backoff.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseSeconds) * time.Second
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func legacyKeys() []string {
	keys := make([]string, 0, len(legacyKeyVars))
	for _, name := range legacyKeyVars {
		keys = append(keys, os.Getenv(name))
	}
	return cleanKeys(keys)
}

func cleanKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
