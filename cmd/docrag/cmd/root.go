// Package cmd provides the CLI commands for docrag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/app"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/profiling"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configFile string
	dataDir    string
	debug      bool
	noColor    bool
	profile    profiling.Options

	profiler *profiling.Session

	// appOptions are passed to app.New; tests use them to swap components.
	appOptions []app.Option
}

// NewRootCmd creates the root command for the docrag CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globalOptions{})
}

func newRootCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docrag",
		Short: "Hybrid retrieval over your documents",
		Long: `docrag indexes PDF, text, and Markdown documents and answers
questions about them.

Keyword (TF-IDF) and semantic (embedding) search are fused, and the index
is persisted locally so documents can be added and removed at any time.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("docrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "Config file (default: .docrag.yaml in the current directory)")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Directory holding the index (default: .docrag)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Write debug logs to <data-dir>/logs/docrag.log")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = g.startProfiling
	cmd.PersistentPostRunE = g.stopProfiling

	cmd.AddCommand(newFilesCmd(g))
	cmd.AddCommand(newDeleteCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newIngestCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newAskCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (g *globalOptions) startProfiling(_ *cobra.Command, _ []string) error {
	if !g.profile.Enabled() {
		return nil
	}
	s, err := profiling.Start(g.profile)
	if err != nil {
		return err
	}
	g.profiler = s
	return nil
}

func (g *globalOptions) stopProfiling(_ *cobra.Command, _ []string) error {
	err := g.profiler.Stop()
	g.profiler = nil
	return err
}

// loadConfig resolves the configuration for the current directory and
// flags.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	dataDir := g.dataDir
	if dataDir != "" && !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(cwd, dataDir)
	}
	cfg, err := config.LoadWith(cwd, config.LoadOptions{File: g.configFile, DataDir: dataDir})
	if err != nil {
		return nil, err
	}
	if g.debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.FilePath = logging.DefaultLogPath(cfg.DataDir)
	}
	return cfg, nil
}

// open loads configuration, sets up logging, and builds the services. The
// returned cleanup closes both.
func (g *globalOptions) open(ctx context.Context) (*app.Services, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, logCleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	if g.debug {
		logger.Info("debug logging enabled",
			slog.String("log_file", cfg.Logging.FilePath),
			slog.String("version", version.Version))
	}

	svc, err := app.New(ctx, cfg, logger, g.appOptions...)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close services", slog.String("error", err.Error()))
		}
		logCleanup()
	}
	return svc, cleanup, nil
}

func (g *globalOptions) output(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), g.noColor)
}
