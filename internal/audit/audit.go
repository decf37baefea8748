// Package audit cross-checks the routing parameters the manual declares
// against the metadata store. It only reads the store.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"algometa/internal/manual"
	"algometa/internal/metadata"
	"algometa/internal/store"
)

// Level is the severity of an issue.
type Level string

const (
	LevelError Level = "ERROR"
	LevelWarn  Level = "WARN"
)

// Issue is one finding for one record.
type Issue struct {
	Level   Level
	Message string
}

// Group collects the issues of one record.
type Group struct {
	GUID   string
	Name   string
	Issues []Issue
}

// Algorithm is what the manual says about one identifier's routing.
type Algorithm struct {
	GUID  string
	Name  string
	Buses []manual.Bus
}

// Report is the result of one audit pass.
type Report struct {
	RunID string
	// Identifiers in the manual with no stored record.
	Missing []string
	// Stored records whose identifier the manual does not mention.
	Legacy []string
	// Stored records that could not be decoded.
	Malformed []string
	Groups    []Group

	OK, Warn, Err int
}

// Summary is the one-line tally printed after a run.
func (r *Report) Summary() string {
	return fmt.Sprintf("ok=%d warn=%d err=%d", r.OK, r.Warn, r.Err)
}

// Run audits every stored record against algs.
func Run(ctx context.Context, algs []Algorithm, s store.Store, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	byGUID := make(map[string]Algorithm, len(algs))
	for _, a := range algs {
		byGUID[a.GUID] = a
	}

	r := &Report{}
	seen := make(map[string]bool)
	stats, err := store.Scan(ctx, s, func(key string, rec *metadata.AlgorithmRecord) error {
		guid := metadata.NormalizeGUID(rec.GUID)
		if guid == "" {
			guid = key
			logger.Debug("Record has no guid, using its key", zap.String("key", key))
		}
		seen[guid] = true
		alg, ok := byGUID[guid]
		if !ok {
			r.Legacy = append(r.Legacy, guid)
		}
		issues := check(rec, alg, ok)
		if len(issues) == 0 {
			r.OK++
			return nil
		}
		for _, is := range issues {
			if is.Level == LevelError {
				r.Err++
			} else {
				r.Warn++
			}
		}
		r.Groups = append(r.Groups, Group{GUID: guid, Name: rec.Name, Issues: issues})
		logger.Debug("Record has issues", zap.String("guid", guid), zap.Int("issues", len(issues)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	r.Malformed = stats.Malformed
	for _, key := range stats.Malformed {
		seen[key] = true
		logger.Warn("Skipping malformed record", zap.String("guid", key))
	}

	for _, a := range algs {
		if !seen[a.GUID] {
			r.Missing = append(r.Missing, a.GUID)
		}
	}
	sort.Strings(r.Missing)
	sort.Strings(r.Legacy)
	return r, nil
}

func check(rec *metadata.AlgorithmRecord, alg Algorithm, inManual bool) []Issue {
	if !inManual {
		return []Issue{{LevelWarn, "Not found in manual – skipped detailed comparison."}}
	}
	var issues []Issue

	stored := make(map[string]*metadata.Parameter)
	var storedOrder []string
	for _, p := range rec.BusParameters() {
		n := metadata.NormalizeName(p.Name)
		if _, dup := stored[n]; !dup {
			stored[n] = p
			storedOrder = append(storedOrder, n)
		}
	}

	declared := make(map[string]bool, len(alg.Buses))
	for _, b := range alg.Buses {
		n := metadata.NormalizeName(b.Name)
		declared[n] = true
		p, ok := stored[n]
		if !ok {
			issues = append(issues, Issue{LevelError, fmt.Sprintf("Missing routing parameter '%s'", b.Name)})
			continue
		}
		if !p.Min.Equal(b.Min) || !p.Max.Equal(b.Max) || (!p.Default.IsZero() && !p.Default.Equal(b.Default)) {
			issues = append(issues, Issue{LevelWarn, fmt.Sprintf("Mismatch for '%s' (manual %s-%s def %s, store %s-%s def %s)",
				b.Name, b.Min, b.Max, b.Default, p.Min, p.Max, p.Default)})
		}
	}

	for _, n := range storedOrder {
		if !declared[n] {
			issues = append(issues, Issue{LevelWarn, fmt.Sprintf("Extra routing parameter not found in manual: '%s'", stored[n].Name)})
		}
	}

	for _, b := range alg.Buses {
		role := portRole(b.Name)
		if rec.FindPort(role, b.Name) == nil {
			issues = append(issues, Issue{LevelWarn, fmt.Sprintf("Missing %s_ports entry for '%s'", role, b.Name)})
		}
	}
	return issues
}

// portRole is the list a bus selector's port is expected in: inputs when the
// name mentions an input, outputs otherwise. Unlike metadata.ClassifyPort it
// ignores bare "in" and "out" fragments.
func portRole(name string) metadata.Role {
	if strings.Contains(metadata.NormalizeName(name), "input") {
		return metadata.RoleInput
	}
	return metadata.RoleOutput
}

// WriteTo renders the report as markdown.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	b.WriteString("# Routing Audit (manual vs metadata store)\n\n")
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n\n", r.RunID)
	}
	section := func(title string, keys []string) {
		if len(keys) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, strings.Join(keys, ", "))
	}
	section("Missing records for identifiers from the manual", r.Missing)
	section("Records present but identifier not found in manual (ok for legacy/custom)", r.Legacy)
	section("Malformed records (skipped)", r.Malformed)

	b.WriteString("## Per-identifier audit\n\n")
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "### %s – %s\n", g.GUID, g.Name)
		for _, is := range g.Issues {
			fmt.Fprintf(&b, "- [%s] %s\n", is.Level, is.Message)
		}
		b.WriteString("\n")
	}
	b.WriteString(r.Summary())
	b.WriteString("\n")
	return b.WriteTo(w)
}

// Markdown returns the rendered report.
func (r *Report) Markdown() string {
	var b strings.Builder
	_, _ = r.WriteTo(&b)
	return b.String()
}
