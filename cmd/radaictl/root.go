package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/radai/internal"
	"github.com/DukeRupert/radai/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

// appFactory builds the report service for one command run.
type appFactory func(ctx context.Context, logger *slog.Logger) (service.ReportService, func() error, error)

// buildFromEnv wires the service from the same environment as the server.
func buildFromEnv(ctx context.Context, logger *slog.Logger) (service.ReportService, func() error, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	app, err := internal.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app.Service, app.Close, nil
}

// cli carries the state shared by every subcommand.
type cli struct {
	factory  appFactory
	logLevel string
	asJSON   bool
}

func newRootCmd(factory appFactory) *cobra.Command {
	c := &cli{factory: factory}

	root := &cobra.Command{
		Use:   "radaictl",
		Short: "Operate on RadAI chest X-ray reports",
		Long: "radaictl analyzes chest X-rays and manages the resulting reports\n" +
			"using the same storage, model and email settings as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&c.asJSON, "json", false, "Print records as JSON")

	root.AddCommand(
		c.analyzeCmd(),
		c.showCmd(),
		c.approveCmd(),
		c.notifyCmd(),
		c.exportCmd(),
		c.summaryCmd(),
		c.deleteCmd(),
	)
	return root
}

// withService builds the service, runs fn and releases storage.
func (c *cli) withService(cmd *cobra.Command, fn func(svc service.ReportService) error) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: internal.ParseLevel(c.logLevel),
	}))

	svc, closeFn, err := c.factory(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeFn != nil {
			if err := closeFn(); err != nil {
				logger.Warn("failed to close storage", "error", err)
			}
		}
	}()
	return fn(svc)
}

func main() {
	if err := newRootCmd(buildFromEnv).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

