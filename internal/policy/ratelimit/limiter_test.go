package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 = one token every 100ms.
	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/bots/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.com/bots/2"))
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiterDifferentHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	if dur := time.Since(start); dur > 50*time.Millisecond {
		t.Errorf("expected no wait for a different host, got %v", dur)
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx, "https://a.com/1"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterWaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.com/1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://a.com/1"))
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", hostOf("https://example.com/bots/1"))
	require.Equal(t, "unknown", hostOf("::not a url"))
	require.Equal(t, "unknown", hostOf(""))
}
