package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"algometa/internal/audit"
	"algometa/internal/logging"
	"algometa/internal/pipeline"
	"algometa/internal/watch"
)

var (
	auditPretty bool
	auditOutput string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare the store against the manual's routing parameters",
	Long: `Checks every stored record against the routing parameters the manual
declares for it and writes a markdown report. The store is only read.

Missing routing parameters are errors; range mismatches, extra routing
parameters and missing ports are warnings.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the audit whenever a manual changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	auditCmd.Flags().BoolVar(&auditPretty, "pretty", false, "Render the report in the terminal")
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "Report path (default: audit.output from config)")
	watchCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "Report path (default: audit.output from config)")
}

func reportPath() string {
	if auditOutput != "" {
		return auditOutput
	}
	return cfg.Audit.Output
}

// auditPass loads the manuals afresh, audits and writes the report.
func auditPass(ctx context.Context, p *pipeline.Pipeline) (*audit.Report, error) {
	m, err := loadManual(p)
	if err != nil {
		return nil, err
	}
	r, err := p.Audit(ctx, m)
	if err != nil {
		return nil, err
	}
	path := reportPath()
	if err := pipeline.WriteReport(path, r); err != nil {
		return nil, err
	}
	logger.Info("Audit report written", zap.String("path", path))
	return r, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, s, err := openPipeline()
	if err != nil {
		return err
	}
	defer closeStore(s)

	r, err := auditPass(ctx, p)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if auditPretty {
		if err := renderReport(out, r); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Wrote %s\n", reportPath())
	fmt.Fprintln(out, r.Summary())
	return nil
}

func renderReport(w io.Writer, r *audit.Report) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	rendered, err := renderer.Render(r.Markdown())
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, s, err := openPipeline()
	if err != nil {
		return err
	}
	defer closeStore(s)

	out := cmd.OutOrStdout()
	pass := func(ctx context.Context) error {
		r, err := auditPass(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, r.Summary())
		return nil
	}
	if err := pass(ctx); err != nil {
		return err
	}

	w, err := watch.New(cfg.Manuals, cfg.GetDebounce(), pass, logs.Get(logging.CategoryWatch))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
