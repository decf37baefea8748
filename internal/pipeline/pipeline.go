// Package pipeline runs the batch flows: read the manuals, parse every
// section, reconcile the results into the store, or audit the store
// read-only. Each run is single-threaded and touches one record at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"algometa/internal/audit"
	"algometa/internal/config"
	"algometa/internal/logging"
	"algometa/internal/manual"
	"algometa/internal/metadata"
	"algometa/internal/reconcile"
	"algometa/internal/store"
)

// Pipeline holds what every flow needs.
type Pipeline struct {
	syntax *manual.Syntax
	tables *manual.TableParser
	store  store.Store
	logs   *logging.Loggers
	dryRun bool
	runID  string
}

// Options configures New.
type Options struct {
	Syntax *manual.Syntax
	Store  store.Store
	Logs   *logging.Loggers
	// DryRun computes and logs changes without saving.
	DryRun bool
	RunID  string
}

// New returns a Pipeline. A nil Syntax means the default syntax and nil Logs
// discard everything.
func New(opts Options) *Pipeline {
	if opts.Syntax == nil {
		opts.Syntax = manual.DefaultSyntax()
	}
	if opts.Logs == nil {
		opts.Logs = logging.Nop()
	}
	return &Pipeline{
		syntax: opts.Syntax,
		tables: manual.NewTableParser(opts.Syntax),
		store:  opts.Store,
		logs:   opts.Logs,
		dryRun: opts.DryRun,
		runID:  opts.RunID,
	}
}

// SyntaxFromConfig builds the manual syntax from the parser config.
func SyntaxFromConfig(cfg config.ParserConfig) (*manual.Syntax, error) {
	ranges := make([]manual.BusRange, 0, len(cfg.BusRanges))
	for _, r := range cfg.BusRanges {
		ranges = append(ranges, manual.BusRange{MinLow: r.Min[0], MinHigh: r.Min[1], MaxLow: r.Max[0], MaxHigh: r.Max[1]})
	}
	return manual.NewSyntax(manual.SyntaxOptions{
		ColumnTitle: cfg.ColumnTitle,
		Units:       cfg.Units,
		BusRanges:   ranges,
	})
}

// LoadSources reads the manual files in priority order. Missing files are
// logged and skipped; it is an error for none to exist.
func LoadSources(paths []string, logger *zap.Logger) ([]manual.Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sources []manual.Source
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Manual not found, skipping", zap.String("path", path))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manual %s: %w", path, err)
		}
		sources = append(sources, manual.NewSource(filepath.Base(path), string(data)))
		logger.Debug("Manual loaded", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("none of the configured manuals exist: %v", paths)
	}
	return sources, nil
}

// Tokenize splits sources into sections and logs what was set aside.
func (p *Pipeline) Tokenize(sources ...manual.Source) *manual.Manual {
	log := p.logs.Get(logging.CategoryManual)
	m := manual.NewTokenizer(p.syntax).Tokenize(sources...)
	for _, sec := range m.Shadowed {
		log.Info("Identifier already defined by an earlier manual, ignoring this copy",
			zap.String("guid", sec.GUID), zap.String("source", sec.Source), zap.Int("line", sec.Start+1))
	}
	for _, rj := range m.Rejected {
		log.Warn("Identifier code is not four characters, skipping",
			zap.String("code", rj.Code), zap.String("source", rj.Source), zap.Int("line", rj.Line))
	}
	log.Info("Manual tokenized", zap.Int("sections", len(m.Sections)), zap.Int("sources", len(sources)))
	return m
}

// Result tallies one write flow.
type Result struct {
	Sections  int
	Created   int
	Updated   int
	Unchanged int
	// Malformed lists identifiers whose stored record could not be decoded.
	Malformed []string
	Skipped   int
}

func (r Result) String() string {
	return fmt.Sprintf("sections=%d created=%d updated=%d unchanged=%d malformed=%d skipped=%d",
		r.Sections, r.Created, r.Updated, r.Unchanged, len(r.Malformed), r.Skipped)
}

// update loads or creates the record for guid, lets fn change it and saves
// it when anything changed.
func (p *Pipeline) update(ctx context.Context, res *Result, guid, name string, fn func(*metadata.AlgorithmRecord) reconcile.Changes) error {
	log := p.logs.Get(logging.CategoryReconcile)
	loaded, err := store.LoadOrCreate(ctx, p.store, guid, name)
	if errors.Is(err, metadata.ErrMalformedRecord) {
		p.logs.Get(logging.CategoryStore).Warn("Skipping malformed record", zap.String("guid", guid), zap.Error(err))
		res.Malformed = append(res.Malformed, guid)
		return nil
	}
	if err != nil {
		return err
	}

	changes := fn(loaded.Record)
	if !loaded.Dirty() && changes.Empty() {
		res.Unchanged++
		return nil
	}
	log.Info("Record changed",
		zap.String("guid", guid),
		zap.Bool("created", loaded.Created),
		zap.Strings("repaired", loaded.Repaired),
		zap.Strings("params_added", changes.ParamsAdded),
		zap.Strings("fields_filled", changes.FieldsFilled),
		zap.Strings("ports_added", changes.PortsAdded),
		zap.Strings("ports_converted", changes.PortsConverted))
	if dups := loaded.Record.DuplicateParameters(); len(dups) > 0 {
		log.Warn("Record holds parameters that normalize to the same name", zap.String("guid", guid), zap.Strings("names", dups))
	}

	if loaded.Created {
		res.Created++
	} else {
		res.Updated++
	}
	if p.dryRun {
		log.Info("Dry run, not saving", zap.String("guid", guid))
		return nil
	}
	if err := p.store.Put(ctx, loaded.Record); err != nil {
		return fmt.Errorf("failed to save %s: %w", guid, err)
	}
	return nil
}

// Sync parses the tables of every section and merges them into the store.
// Sections without a stored record get one.
func (p *Pipeline) Sync(ctx context.Context, m *manual.Manual) (Result, error) {
	var res Result
	mlog := p.logs.Get(logging.CategoryManual)
	for _, sec := range m.Sections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Sections++
		table := p.tables.Parse(sec)
		for _, a := range table.Ambiguous {
			mlog.Debug("Table line dropped", zap.String("guid", sec.GUID), zap.Int("line", a.Line),
				zap.String("text", a.Text), zap.String("reason", a.Reason))
		}
		summary := manual.ReadSummary(sec)
		err := p.update(ctx, &res, sec.GUID, sec.Header, func(rec *metadata.AlgorithmRecord) reconcile.Changes {
			c := reconcile.Rows(rec, table.Rows)
			c.Add(reconcile.FillSummary(rec, summary))
			return c
		})
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// Enrich merges the bus selectors found by the bus heuristic and makes sure
// each has a port. Sections without bus selectors are skipped.
func (p *Pipeline) Enrich(ctx context.Context, m *manual.Manual) (Result, error) {
	var res Result
	for _, sec := range m.Sections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Sections++
		buses := p.syntax.Buses(sec)
		if len(buses) == 0 {
			res.Skipped++
			continue
		}
		err := p.update(ctx, &res, sec.GUID, sec.Header, func(rec *metadata.AlgorithmRecord) reconcile.Changes {
			return reconcile.Buses(rec, buses)
		})
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// Stubs creates a skeleton record, with the manual summary filled in, for
// every section that has no stored record. Existing records are not touched.
func (p *Pipeline) Stubs(ctx context.Context, m *manual.Manual) (Result, error) {
	var res Result
	for _, sec := range m.Sections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Sections++
		_, err := p.store.Get(ctx, sec.GUID)
		if !errors.Is(err, store.ErrNotFound) {
			if errors.Is(err, metadata.ErrMalformedRecord) {
				res.Malformed = append(res.Malformed, sec.GUID)
			} else if err != nil {
				return res, err
			}
			res.Skipped++
			continue
		}
		summary := manual.ReadSummary(sec)
		err = p.update(ctx, &res, sec.GUID, sec.Header, func(rec *metadata.AlgorithmRecord) reconcile.Changes {
			return reconcile.FillSummary(rec, summary)
		})
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// Audit compares the store against the manual. The routing parameters the
// manual declares are the bus selectors found by the bus heuristic; table rows
// only named like inputs or outputs are not. It never writes records.
func (p *Pipeline) Audit(ctx context.Context, m *manual.Manual) (*audit.Report, error) {
	algs := make([]audit.Algorithm, 0, len(m.Sections))
	for _, sec := range m.Sections {
		algs = append(algs, audit.Algorithm{GUID: sec.GUID, Name: sec.Header, Buses: p.syntax.Buses(sec)})
	}
	r, err := audit.Run(ctx, algs, p.store, p.logs.Get(logging.CategoryAudit))
	if err != nil {
		return nil, err
	}
	r.RunID = p.runID
	p.logs.Get(logging.CategoryAudit).Info("Audit complete",
		zap.Int("ok", r.OK), zap.Int("warn", r.Warn), zap.Int("err", r.Err),
		zap.Int("missing", len(r.Missing)), zap.Int("legacy", len(r.Legacy)))
	return r, nil
}

// WriteReport writes r to path, creating parent directories.
func WriteReport(path string, r *audit.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// Inspection is everything parsed from one section.
type Inspection struct {
	Section *manual.Section
	Table   manual.Table
	Buses   []manual.Bus
	Summary manual.Summary
}

// Inspect parses the section for guid.
func (p *Pipeline) Inspect(m *manual.Manual, guid string) (*Inspection, error) {
	sec, err := m.Find(guid)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Section: sec,
		Table:   p.tables.Parse(sec),
		Buses:   p.syntax.Buses(sec),
		Summary: manual.ReadSummary(sec),
	}, nil
}
