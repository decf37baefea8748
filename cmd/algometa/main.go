package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"algometa/internal/config"
	"algometa/internal/logging"
	"algometa/internal/manual"
	"algometa/internal/pipeline"
	"algometa/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool
	dryRun     bool

	cfg    *config.Config
	logs   *logging.Loggers
	logger *zap.Logger
	runID  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "algometa",
	Short: "Keep algorithm metadata in step with the device manual",
	Long: `algometa reads the device manual, one section per algorithm, and merges
the parameter tables, bus selectors and summaries it finds into the
per-algorithm metadata store.

Merges only ever fill gaps: curated values in the store are never replaced,
and running a command twice changes nothing the second time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			logs.Sync()
		}
	},
}

// initRuntime loads the config and builds the loggers for one invocation.
func initRuntime() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	l, err := logging.New(logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Categories: c.Logging.Categories,
		Verbose:    verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg = c
	runID = uuid.NewString()
	logs = l.With(zap.String("run_id", runID))
	logger = logs.Get(logging.CategoryBoot)

	var disabled []string
	for _, cat := range logging.Categories() {
		if !cfg.Logging.IsCategoryEnabled(string(cat)) {
			disabled = append(disabled, string(cat))
		}
	}
	logger.Debug("Configuration loaded",
		zap.String("config", configPath),
		zap.Strings("manuals", cfg.Manuals),
		zap.String("backend", cfg.Store.Backend),
		zap.Strings("disabled_categories", disabled),
		zap.Bool("dry_run", dryRun))
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// openPipeline opens the configured store and builds a pipeline over it.
// The caller closes the store.
func openPipeline() (*pipeline.Pipeline, store.Store, error) {
	syntax, err := pipeline.SyntaxFromConfig(cfg.Parser)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid parser config: %w", err)
	}
	s, err := store.Open(cfg.Store, logs.Get(logging.CategoryStore))
	if err != nil {
		return nil, nil, err
	}
	p := pipeline.New(pipeline.Options{
		Syntax: syntax,
		Store:  s,
		Logs:   logs,
		DryRun: dryRun,
		RunID:  runID,
	})
	return p, s, nil
}

// loadManual reads and tokenizes the configured manuals.
func loadManual(p *pipeline.Pipeline) (*manual.Manual, error) {
	sources, err := pipeline.LoadSources(cfg.Manuals, logs.Get(logging.CategoryManual))
	if err != nil {
		return nil, err
	}
	return p.Tokenize(sources...), nil
}

func closeStore(s store.Store) {
	if err := s.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "algometa.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Compute and log changes without saving")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(stubsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
