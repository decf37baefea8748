package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"algometa/internal/config"
	"algometa/internal/store"
)

var (
	copyTo   string
	copyPath string
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Merge externally produced records into the store",
	Long: `Merges JSON records, for example stubs filled in by hand or by another
tool, into the store with the same fill-only rules the manual merges use.
Each file holds one record object or an array of them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy every record to another store backend",
	Long: `Copies every decodable record from the configured store into another
backend. Malformed records are reported and left behind.

Example:
  algometa copy --to sqlite --path data/algometa.db`,
	Args: cobra.NoArgs,
	RunE: runCopy,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	copyCmd.Flags().StringVar(&copyTo, "to", "", "Target backend (dir, sqlite)")
	copyCmd.Flags().StringVar(&copyPath, "path", "", "Target directory or database file (default: from config)")
	_ = copyCmd.MarkFlagRequired("to")

	configCmd.AddCommand(configInitCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, s, err := openPipeline()
	if err != nil {
		return err
	}
	defer closeStore(s)

	res, err := p.Import(ctx, args)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	logger.Info("Import complete", zap.Strings("files", args), zap.Stringer("result", res))
	printResult(cmd, res)
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	target := config.StoreConfig{Backend: copyTo, Dir: cfg.Store.Dir, DatabasePath: cfg.Store.DatabasePath}
	if copyPath != "" {
		target.Dir = copyPath
		target.DatabasePath = copyPath
	}
	if target == cfg.Store {
		return fmt.Errorf("source and target store are the same")
	}

	from, err := store.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore(from)
	to, err := store.Open(target, logger)
	if err != nil {
		return err
	}
	defer closeStore(to)

	stats, err := store.Copy(ctx, from, to)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "copied=%d malformed=%d\n", stats.Records, len(stats.Malformed))
	for _, guid := range stats.Malformed {
		fmt.Fprintf(out, "malformed: %s\n", guid)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
