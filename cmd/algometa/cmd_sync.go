package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"algometa/internal/manual"
	"algometa/internal/pipeline"
)

// flow is one of the manual-driven write passes.
type flow func(p *pipeline.Pipeline, ctx context.Context, m *manual.Manual) (pipeline.Result, error)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge every manual parameter table into the store",
	Long: `Tokenizes the configured manuals, parses the parameter table of every
algorithm section and merges the rows into the store. Sections without a
stored record get one. Routing rows also get a port entry.`,
	Args: cobra.NoArgs,
	RunE: runFlow("sync", (*pipeline.Pipeline).Sync),
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Merge bus selectors and make sure each has a port",
	Args:  cobra.NoArgs,
	RunE:  runFlow("enrich", (*pipeline.Pipeline).Enrich),
}

var stubsCmd = &cobra.Command{
	Use:   "stubs",
	Short: "Create skeleton records for sections missing from the store",
	Args:  cobra.NoArgs,
	RunE:  runFlow("stubs", (*pipeline.Pipeline).Stubs),
}

func runFlow(name string, run flow) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, s, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeStore(s)

		m, err := loadManual(p)
		if err != nil {
			return err
		}
		res, err := run(p, ctx, m)
		if err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		logger.Info("Run complete", zap.String("command", name), zap.Stringer("result", res))
		printResult(cmd, res)
		return nil
	}
}

func printResult(cmd *cobra.Command, res pipeline.Result) {
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprint(out, "dry run: ")
	}
	fmt.Fprintln(out, res.String())
	for _, guid := range res.Malformed {
		fmt.Fprintf(out, "malformed: %s\n", guid)
	}
}
