// Package postgres persists scrape log records in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "scrape_logs"

// LogStoreConfig controls the Postgres connection pool used for log rows.
type LogStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// LogStore writes one row per LogRecord.
type LogStore struct {
	pool  execCloser
	table string
}

// NewLogStore connects a pool and returns a LogStore.
func NewLogStore(ctx context.Context, cfg LogStoreConfig) (*LogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LogStore{pool: pool, table: table}, nil
}

// NewLogStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLogStoreWithPool(pool execCloser, table string) (*LogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &LogStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool.
func (s *LogStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// StoreLogs inserts every record under runID. Rows are written in order and the
// first failure stops the batch.
func (s *LogStore) StoreLogs(ctx context.Context, runID string, logs []crawler.LogRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("log store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	seq,
	website,
	company,
	domain,
	status,
	description,
	retries,
	attempted_at,
	status_code,
	response_time_ms,
	headers_sent,
	headers_received,
	page_title,
	content_length,
	link_count,
	pdf_count,
	first_pdf_url,
	redirected_url,
	user_agent,
	cookies_sent,
	cookies_received
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)`, s.table)

	for i, rec := range logs {
		if _, err := s.pool.Exec(ctx, query, rowArgs(runID, i, rec)...); err != nil {
			return fmt.Errorf("insert log %d (%s): %w", i, rec.Website, err)
		}
	}
	return nil
}

func rowArgs(runID string, seq int, rec crawler.LogRecord) []any {
	var responseMillis *int64
	if rec.ResponseTime != nil {
		ms := rec.ResponseTime.Milliseconds()
		responseMillis = &ms
	}
	return []any{
		runID,
		seq,
		rec.Website,
		rec.Company,
		rec.Domain,
		string(rec.Status),
		rec.Description,
		rec.Retries,
		rec.AttemptedAt,
		rec.StatusCode,
		responseMillis,
		[]byte(jsonOrEmpty(rec.HeadersSent)),
		[]byte(jsonOrEmpty(rec.HeadersReceived)),
		rec.PageTitle,
		rec.ContentLength,
		rec.LinkCount,
		rec.PDFCount,
		rec.FirstPDFURL,
		rec.RedirectedURL,
		rec.UserAgent,
		[]byte(jsonOrEmpty(rec.CookiesSent)),
		[]byte(jsonOrEmpty(rec.CookiesReceived)),
	}
}

// jsonOrEmpty maps an absent snapshot to an empty JSON object for jsonb columns.
func jsonOrEmpty(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
