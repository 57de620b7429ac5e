package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterPacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 20, DefaultBurst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://acme.test/"))
	require.NoError(t, l.Wait(ctx, "https://acme.test/about"))
	require.NoError(t, l.Wait(ctx, "https://ACME.test/report.pdf"))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiterSeparatesHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://a.test"))
	require.NoError(t, l.Wait(ctx, "https://b.test"))
	require.Error(t, l.Wait(ctx, "https://a.test"))
}

func TestLimiterDisabledByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHost: map[string]float64{"Slow.test": 0.01}})
	for range 50 {
		require.NoError(t, l.Wait(context.Background(), "https://fast.test"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "https://slow.test"))
	require.Error(t, l.Wait(ctx, "https://slow.test"))
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acme.test", hostOf("https://Acme.test:8443/x"))
	assert.Equal(t, "unknown", hostOf("::bad"))
	assert.Equal(t, "unknown", hostOf("relative/path"))
}
