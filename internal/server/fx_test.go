package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/commands"
	"github.com/JakeFAU/robot-leaderboard/internal/config"
	"github.com/JakeFAU/robot-leaderboard/internal/coordinator"
	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	memorypublisher "github.com/JakeFAU/robot-leaderboard/internal/publisher/memory"
	"github.com/JakeFAU/robot-leaderboard/internal/publisher/webhook"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Scraper: config.ScraperConfig{TimeoutSeconds: 1, RefreshConcurrency: 2, RequestsPerSecond: 5, Burst: 1},
		Store:   config.StoreConfig{Provider: config.ProviderMemory},
		Channel: config.ChannelConfig{Provider: config.ProviderMemory},
		Refresh: config.RefreshConfig{Interval: time.Hour},
	}
}

func TestBuildWiresMemoryProviders(t *testing.T) {
	t.Parallel()

	app, err := BuildWithLogger(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(context.Background())) }()

	reply := app.Commands().Show(context.Background(), commands.Caller{})
	require.Equal(t, commands.OK, reply.Outcome)
	require.Equal(t, leaderboard.EmptyMessage, reply.Text)

	require.True(t, app.Coordinator().RefreshNow(context.Background(), coordinator.TriggerManual))
	ch, ok := app.channel.(*memorypublisher.Channel)
	require.True(t, ok)
	panels := ch.Panels()
	require.Len(t, panels, 1)
	require.Equal(t, leaderboard.EmptyMessage, panels[0].Title)

	rec := httptest.NewRecorder()
	app.apiServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Bot is running!", rec.Body.String())
}

func TestBuildWithSQLiteStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store = config.StoreConfig{
		Provider: config.ProviderSQLite,
		SQLite:   config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bots.db")},
	}
	app, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.sqliteStore)
	require.NoError(t, app.Close(context.Background()))
	// a second close is a no-op
	require.NoError(t, app.Close(context.Background()))
}

func TestBuildRejectsBadPostgresDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store = config.StoreConfig{
		Provider: config.ProviderPostgres,
		Postgres: config.PostgresConfig{DSN: "::not a dsn::"},
	}
	_, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "postgres store init failed")
}

func TestBuildRejectsWebhookWithoutURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Channel = config.ChannelConfig{Provider: config.ProviderWebhook}
	_, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "webhook channel init failed")
}

func TestBuildWebhookLoadsLedger(t *testing.T) {
	t.Parallel()

	ledgerPath := filepath.Join(t.TempDir(), "messages.json")
	ledger, err := webhook.NewFileLedger(ledgerPath)
	require.NoError(t, err)
	require.NoError(t, ledger.Save([]webhook.TrackedMessage{{ID: "msg-9"}}))

	cfg := testConfig()
	cfg.Channel = config.ChannelConfig{
		Provider: config.ProviderWebhook,
		Webhook:  config.WebhookConfig{URL: "https://discord.example/api/webhooks/1/abc", LedgerPath: ledgerPath},
	}
	app, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close(context.Background())) }()

	ch, ok := app.channel.(*webhook.Channel)
	require.True(t, ok)
	require.Equal(t, []string{"msg-9"}, ch.Tracked())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.Port = freePort(t)
	cfg.Refresh.OnStartup = true
	app, err := BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Coordinator().Status().Cycles >= 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
