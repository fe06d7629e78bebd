// Package cmd defines and implements the CLI commands for the botboard
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/robot-leaderboard/internal/api"
	"github.com/JakeFAU/robot-leaderboard/internal/config"
	"github.com/JakeFAU/robot-leaderboard/internal/coordinator"
	"github.com/JakeFAU/robot-leaderboard/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. Tests inject a
// fake through newApp.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Commands() api.Commands
	// Publish runs one clear-and-republish cycle and reports whether it ran.
	Publish(ctx context.Context) bool
}

type serverApp struct {
	*server.App
}

func (a serverApp) Commands() api.Commands {
	return a.App.Commands()
}

func (a serverApp) Publish(ctx context.Context) bool {
	return a.App.Coordinator().RefreshNow(ctx, coordinator.TriggerManual)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	app, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by the caller
	}
	return serverApp{App: app}, nil
}

// newRootCmd builds the command tree. The App created by the persistent
// pre-run hook is stored in *built so the caller can close it even when a
// command fails, since cobra skips post-run hooks on error.
func newRootCmd(built *App) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "botboard",
		Short: "Tracks combat robot rankings and publishes per-weight-class leaderboards.",
		Long: `botboard scrapes combat robot pages, keeps one record per bot, and
publishes a ranked leaderboard panel for every weight class to a messaging
channel. Run "botboard serve" for the long-running service, or use the
one-shot commands to manage tracked bots from a shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			*built = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); BOTBOARD_* env vars override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newPublishCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes the CLI with args and closes whatever App it built.
func run(ctx context.Context, args []string, out io.Writer) error {
	var appInstance App
	root := newRootCmd(&appInstance)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	err := root.ExecuteContext(ctx)
	if appInstance != nil {
		if closeErr := appInstance.Close(context.Background()); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close application: %w", closeErr))
		}
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
