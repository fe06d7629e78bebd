// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/api"
	"github.com/JakeFAU/robot-leaderboard/internal/commands"
	"github.com/JakeFAU/robot-leaderboard/internal/config"
	"github.com/JakeFAU/robot-leaderboard/internal/coordinator"
	collyfetcher "github.com/JakeFAU/robot-leaderboard/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/robot-leaderboard/internal/fetcher/headless"
	"github.com/JakeFAU/robot-leaderboard/internal/fetcher/promote"
	"github.com/JakeFAU/robot-leaderboard/internal/id/uuid"
	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	"github.com/JakeFAU/robot-leaderboard/internal/logging"
	"github.com/JakeFAU/robot-leaderboard/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/robot-leaderboard/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/robot-leaderboard/internal/publisher/pubsub"
	"github.com/JakeFAU/robot-leaderboard/internal/publisher/webhook"
	"github.com/JakeFAU/robot-leaderboard/internal/reconcile"
	"github.com/JakeFAU/robot-leaderboard/internal/scrape"
	memorystore "github.com/JakeFAU/robot-leaderboard/internal/storage/memory"
	pgstore "github.com/JakeFAU/robot-leaderboard/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/robot-leaderboard/internal/storage/sqlite"
)

// App contains the application's dependencies. Everything that used to be a
// process-wide global (store handle, channel handle, refresh gate) lives
// here and is handed to components explicitly.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store       leaderboard.Store
	channel     leaderboard.Channel
	reconciler  *reconcile.Adapter
	coordinator *coordinator.Coordinator
	commands    *commands.Service
	apiServer   *api.Server

	headless        *headlessfetcher.Fetcher
	pgStore         *pgstore.EntryStore
	sqliteStore     *sqlitestore.EntryStore
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher

	closeOnce sync.Once
}

// Commands exposes the command service for one-shot CLI invocations.
func (a *App) Commands() *commands.Service {
	return a.commands
}

// Coordinator exposes the refresh coordinator.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the HTTP server and the refresh scheduler and blocks until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("refresh scheduler started",
			zap.Duration("interval", a.cfg.Refresh.Interval),
			zap.Bool("on_startup", a.cfg.Refresh.OnStartup),
		)
		a.coordinator.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. Background refresh cycles
// are allowed to finish first.
func (a *App) Close(_ context.Context) error {
	a.closeOnce.Do(func() {
		if a.coordinator != nil {
			a.coordinator.Close()
		}
		a.closeInfrastructure()
		if err := a.logger.Sync(); err != nil {
			a.logger.Debug("logger sync failed", zap.Error(err))
		}
		a.logger.Info("shutdown complete")
	})
	return nil
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.String("channel", cfg.Channel.Provider),
	)

	if err := setupStore(ctx, app); err != nil {
		return nil, err
	}
	if err := setupChannel(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	scraper, err := setupScraper(app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.reconciler = reconcile.New(app.store, scraper, reconcile.Config{
		RefreshConcurrency: cfg.Scraper.RefreshConcurrency,
	}, logger)

	app.coordinator, err = coordinator.New(app.reconciler, app.channel, coordinator.Config{
		Interval:  cfg.Refresh.Interval,
		OnStartup: cfg.Refresh.OnStartup,
		Rescrape:  cfg.Refresh.Rescrape,
	}, logger, coordinator.WithRescraper(app.reconciler), coordinator.WithClock(leaderboard.SystemClock))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("coordinator init failed: %w", err)
	}

	app.commands = commands.New(app.reconciler, app.coordinator, commands.Config{
		AllowedChannels: cfg.Commands.AllowedChannels,
		AdminIDs:        cfg.Commands.AdminIDs,
	}, logger)

	if cfg.Server.APIKey == "" && (len(cfg.Commands.AllowedChannels) > 0 || len(cfg.Commands.AdminIDs) > 0) {
		logger.Warn("allow-lists are set without server.api_key; HTTP callers are anonymous and will be denied")
	}
	app.apiServer = api.NewServer(app.commands, app.coordinator, api.Config{
		APIKey: cfg.Server.APIKey,
		Ready:  app.reconciler.Configured,
	}, logger)

	return app, nil
}

func setupStore(ctx context.Context, app *App) error {
	switch app.cfg.Store.Provider {
	case config.ProviderPostgres:
		store, err := pgstore.NewEntryStore(ctx, pgstore.Config{
			DSN:      app.cfg.Store.Postgres.DSN,
			Table:    app.cfg.Store.Postgres.Table,
			MaxConns: app.cfg.Store.Postgres.MaxConns,
			Migrate:  app.cfg.Store.Postgres.Migrate,
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		app.pgStore = store
		app.store = store
		app.logger.Info("using postgres entry store", zap.String("table", app.cfg.Store.Postgres.Table))
	case config.ProviderSQLite:
		store, err := sqlitestore.Open(ctx, app.cfg.Store.SQLite.Path, uuid.NewUUIDGenerator())
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		app.sqliteStore = store
		app.store = store
		app.logger.Info("using sqlite entry store", zap.String("path", app.cfg.Store.SQLite.Path))
	default:
		app.store = memorystore.NewEntryStore(uuid.NewUUIDGenerator())
		app.logger.Warn("using in-memory entry store; tracked bots are lost on restart")
	}
	return nil
}

func setupChannel(ctx context.Context, app *App) error {
	switch app.cfg.Channel.Provider {
	case config.ProviderWebhook:
		webhookCfg := webhook.Config{URL: app.cfg.Channel.Webhook.URL}
		if path := app.cfg.Channel.Webhook.LedgerPath; path != "" {
			ledger, err := webhook.NewFileLedger(path)
			if err != nil {
				return fmt.Errorf("webhook ledger init failed: %w", err)
			}
			webhookCfg.Ledger = ledger
		} else {
			app.logger.Warn("webhook message ledger disabled; panels posted before a restart are not purged")
		}
		ch, err := webhook.New(webhookCfg, app.logger)
		if err != nil {
			return fmt.Errorf("webhook channel init failed: %w", err)
		}
		app.channel = ch
		app.logger.Info("publishing to webhook channel",
			zap.String("ledger_path", app.cfg.Channel.Webhook.LedgerPath),
			zap.Int("tracked_messages", len(ch.Tracked())),
		)
	case config.ProviderPubSub:
		var err error
		app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.Channel.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubPublisher = app.pubsubClient.Publisher(app.cfg.Channel.PubSub.TopicID)
		ch, err := gcppublisher.New(app.pubsubPublisher)
		if err != nil {
			return fmt.Errorf("pubsub channel init failed: %w", err)
		}
		app.channel = ch
		app.logger.Info("Pub/Sub channel initialized",
			zap.String("project", app.cfg.Channel.PubSub.ProjectID),
			zap.String("topic", app.cfg.Channel.PubSub.TopicID),
		)
	default:
		app.channel = memorypublisher.New()
		app.logger.Warn("no channel configured, using in-memory channel")
	}
	return nil
}

func setupScraper(app *App) (*scrape.Scraper, error) {
	fetcher, err := setupFetcher(app)
	if err != nil {
		return nil, err
	}

	var limiter scrape.Limiter
	if app.cfg.Scraper.RequestsPerSecond > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: app.cfg.Scraper.RequestsPerSecond,
			Burst:             app.cfg.Scraper.Burst,
		})
		app.logger.Info("rate limiter enabled",
			zap.Float64("requests_per_second", app.cfg.Scraper.RequestsPerSecond),
			zap.Int("burst", app.cfg.Scraper.Burst),
		)
	}
	return scrape.New(fetcher, limiter, app.logger.Named("scraper")), nil
}

func setupFetcher(app *App) (scrape.Fetcher, error) {
	scraperCfg := app.cfg.Scraper
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:      scraperCfg.UserAgent,
		RespectRobots:  scraperCfg.RespectRobots,
		Timeout:        app.cfg.ScrapeTimeout(),
		AllowedDomains: scraperCfg.AllowedDomains,
		MaxBodyBytes:   scraperCfg.MaxBodyBytes,
	})
	if !scraperCfg.Headless && !scraperCfg.PromoteHeadless {
		app.logger.Info("using colly fetcher", zap.String("user_agent", scraperCfg.UserAgent))
		return plain, nil
	}

	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       scraperCfg.RefreshConcurrency,
		UserAgent:         scraperCfg.UserAgent,
		NavigationTimeout: app.cfg.NavTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	app.headless = headless
	if scraperCfg.Headless {
		app.logger.Info("using headless fetcher", zap.Duration("nav_timeout", app.cfg.NavTimeout()))
		return headless, nil
	}

	promoting, err := promote.New(plain, headless, promote.NewHeuristic(0), app.logger.Named("promote"))
	if err != nil {
		return nil, fmt.Errorf("promoting fetcher init failed: %w", err)
	}
	app.logger.Info("using colly fetcher with headless promotion",
		zap.Duration("nav_timeout", app.cfg.NavTimeout()),
	)
	return promoting, nil
}
