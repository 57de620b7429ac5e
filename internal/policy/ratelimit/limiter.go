// Package ratelimit paces outbound fetches with one token bucket per host.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/company-signals/internal/metrics"
)

// Config holds rate limiter configuration. A non-positive DefaultRPS disables
// limiting for hosts without an override.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// PerHost overrides DefaultRPS for specific hostnames.
	PerHost map[string]float64
}

// Limiter manages per-host token buckets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      Config
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	if cfg.DefaultBurst <= 0 {
		cfg.DefaultBurst = 1
	}
	overrides := make(map[string]float64, len(cfg.PerHost))
	for host, rps := range cfg.PerHost {
		overrides[strings.ToLower(host)] = rps
	}
	cfg.PerHost = overrides
	return &Limiter{limiters: make(map[string]*rate.Limiter), cfg: cfg}
}

// Wait blocks until a token is available for rawURL's host or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	limiter := l.forHost(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err //nolint:wrapcheck // caller adds context
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, d)
	}
	return nil
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	rps, ok := l.cfg.PerHost[host]
	if !ok {
		rps = l.cfg.DefaultRPS
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	limiter := rate.NewLimiter(limit, l.cfg.DefaultBurst)
	l.limiters[host] = limiter
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
