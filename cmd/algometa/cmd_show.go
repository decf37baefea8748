package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"algometa/internal/metadata"
	"algometa/internal/store"
)

var showRecord bool

var showCmd = &cobra.Command{
	Use:   "show [guid]",
	Short: "Print what the manual says about one algorithm",
	Long: `Prints the parsed section for one identifier: the table rows, the bus
selectors, the summary and any lines the table parser dropped.

Example:
  algometa show clck
  algometa show clck --record`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRecord, "record", false, "Also print the stored record")
}

func runShow(cmd *cobra.Command, args []string) error {
	p, s, err := openPipeline()
	if err != nil {
		return err
	}
	defer closeStore(s)

	m, err := loadManual(p)
	if err != nil {
		return err
	}
	guid := metadata.NormalizeGUID(args[0])
	in, err := p.Inspect(m, guid)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sec := in.Section
	fmt.Fprintf(out, "%s – %s (%s lines %d-%d)\n\n", sec.GUID, sec.Header, sec.Source, sec.Start+1, sec.End)

	fmt.Fprintln(out, "Parameters:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tMIN\tMAX\tDEFAULT\tUNIT\tSCOPE\tLINE")
	for _, r := range in.Table.Rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%d\n", r.Name, r.Min, r.Max, r.Default, r.Unit, r.Scope, r.Line)
	}
	tw.Flush()

	if len(in.Buses) > 0 {
		fmt.Fprintln(out, "\nBus selectors:")
		for _, b := range in.Buses {
			fmt.Fprintf(out, "  %s %s-%s def %s (line %d)\n", b.Name, b.Min, b.Max, b.Default, b.Line)
		}
	}
	if len(in.Table.Ambiguous) > 0 {
		fmt.Fprintln(out, "\nDropped lines:")
		for _, a := range in.Table.Ambiguous {
			fmt.Fprintf(out, "  %d: %s (%s)\n", a.Line, a.Text, a.Reason)
		}
	}
	if in.Summary.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n  %s\n", in.Summary.Description)
	}
	for _, spec := range in.Summary.Specifications {
		fmt.Fprintf(out, "  spec %s %s-%s\n", spec.Name, spec.Min, spec.Max)
	}

	if showRecord {
		return printRecord(cmd, s, guid, out)
	}
	return nil
}

func printRecord(cmd *cobra.Command, s store.Store, guid string, out io.Writer) error {
	rec, err := s.Get(cmd.Context(), guid)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(out, "\nNo stored record for %s\n", guid)
		return nil
	}
	if err != nil {
		return err
	}
	data, err := metadata.Encode(rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nStored record:\n%s", data)
	return nil
}
