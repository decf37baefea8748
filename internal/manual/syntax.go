// Package manual turns the device manual into per-algorithm sections and
// pulls parameter tables, bus selectors and summaries out of them.
//
// Everything here is pure: the patterns the package recognises are carried
// by a Syntax value built once from configuration and passed in.
package manual

import (
	"fmt"
	"regexp"
	"strings"

	"algometa/internal/metadata"
)

// DefaultColumnTitle is the literal title line of parameter tables.
const DefaultColumnTitle = "Name Min Max Default Unit Description"

// DefaultUnits is the unit whitelist checked after a row's three numbers.
var DefaultUnits = []string{"V", "dB", "%", "Hz", "ST", "ms", "s", "kΩ", "μF", "MIDI channel"}

// BusRange is an accepted (min, max) window for a bus selector row.
type BusRange struct {
	MinLow, MinHigh float64
	MaxLow, MaxHigh float64
}

// Contains reports whether min and max fall inside the window.
func (r BusRange) Contains(min, max float64) bool {
	return min >= r.MinLow && min <= r.MinHigh && max >= r.MaxLow && max <= r.MaxHigh
}

// DefaultBusRanges accept the usual 0/1..28 style selectors.
var DefaultBusRanges = []BusRange{
	{MinLow: 0, MinHigh: 4, MaxLow: 24, MaxHigh: 32},
	{MinLow: 0, MinHigh: 1, MaxLow: 20, MaxHigh: 32},
}

// Syntax holds the patterns used to read a manual. It is immutable once
// built; share one value between a Tokenizer and a TableParser.
type Syntax struct {
	header      *regexp.Regexp
	guid        *regexp.Regexp
	guidLoose   *regexp.Regexp
	busRow      *regexp.Regexp
	blockTitle  *regexp.Regexp
	fence       string
	columnTitle string
	units       [][]string
	busRanges   []BusRange
}

// SyntaxOptions customises NewSyntax. Zero fields take the defaults.
type SyntaxOptions struct {
	ColumnTitle string
	Units       []string
	BusRanges   []BusRange
}

// NewSyntax builds a Syntax from opts.
func NewSyntax(opts SyntaxOptions) (*Syntax, error) {
	s := &Syntax{
		header: regexp.MustCompile(`^##\s+(.*)`),
		// Quote glyphs seen around codes: ' ‘ ’ ′ ‵. Codes may carry spaces.
		// guidLoose catches anything else declared so it can be rejected.
		guid:      regexp.MustCompile(`File format guid:\s*['‘’′‵]?((?:[A-Za-z0-9] ?){3}[A-Za-z0-9])(?:[^A-Za-z0-9]|$)`),
		guidLoose: regexp.MustCompile(`File format guid:\s*['‘’′‵]?([A-Za-z0-9](?:[A-Za-z0-9 ]*[A-Za-z0-9])?)`),
		busRow:    regexp.MustCompile(`^([A-Za-z0-9\-/() .]+?)\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\b`),
		blockTitle: regexp.MustCompile(`(?i)^(parameters|routing parameters|gain parameters|globals? parameters|` +
			`per-(channel|expression|band|sample|switch|voice|send|track|step|channel per-band)( per-band)? parameters|` +
			`randomise parameters)\b`),
		fence:       "```",
		columnTitle: DefaultColumnTitle,
		busRanges:   DefaultBusRanges,
	}
	if opts.ColumnTitle != "" {
		s.columnTitle = opts.ColumnTitle
	}
	units := opts.Units
	if len(units) == 0 {
		units = DefaultUnits
	}
	for _, u := range units {
		f := strings.Fields(u)
		if len(f) == 0 {
			return nil, fmt.Errorf("empty unit in whitelist")
		}
		s.units = append(s.units, f)
	}
	if len(opts.BusRanges) > 0 {
		for _, r := range opts.BusRanges {
			if r.MinLow > r.MinHigh || r.MaxLow > r.MaxHigh {
				return nil, fmt.Errorf("bus range %+v is inverted", r)
			}
		}
		s.busRanges = append([]BusRange(nil), opts.BusRanges...)
	}
	return s, nil
}

// DefaultSyntax returns the Syntax for the stock manual format.
func DefaultSyntax() *Syntax {
	s, err := NewSyntax(SyntaxOptions{})
	if err != nil {
		panic(err)
	}
	return s
}

// headerName returns the display name of a second-level header line.
func (s *Syntax) headerName(line string) (string, bool) {
	m := s.header.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return strings.TrimRight(strings.TrimSpace(m[1]), ". "), true
}

// guidCode returns the raw code declared on line: four characters, possibly
// spaced, or whatever else follows the label when that fails.
func (s *Syntax) guidCode(line string) (string, bool) {
	if m := s.guid.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := s.guidLoose.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

func (s *Syntax) isFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, s.fence)
}

// isColumnTitle matches the table title line, plain or wrapped in ** or __.
// A replica such as "Name Min Max ..." inside a table also matches.
func (s *Syntax) isColumnTitle(trimmed string) bool {
	t := strings.Trim(trimmed, "*_ ")
	n := metadata.NormalizeName(t)
	title := metadata.NormalizeName(s.columnTitle)
	if n == title {
		return true
	}
	f := strings.Fields(title)
	if len(f) >= 3 {
		return strings.HasPrefix(n, strings.Join(f[:3], " ")+" ")
	}
	return false
}

func isEmphasised(trimmed string) bool {
	return strings.HasPrefix(trimmed, "**") || strings.HasPrefix(trimmed, "__")
}

// scopeFor maps a table's block title to a scope hint.
func (s *Syntax) scopeFor(title string) metadata.Scope {
	if !s.blockTitle.MatchString(title) {
		return metadata.ScopeUnspecified
	}
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "routing"):
		return metadata.ScopeRouting
	case strings.Contains(t, "channel"):
		return metadata.ScopeChannel
	case strings.Contains(t, "step"):
		return metadata.ScopeStep
	case strings.Contains(t, "expression"):
		return metadata.ScopeExpression
	case strings.Contains(t, "randomise"):
		return metadata.ScopeRandomise
	default:
		return metadata.ScopeGlobal
	}
}

// matchUnit consumes a whitelisted unit from the start of fields.
func (s *Syntax) matchUnit(fields []string) (string, []string) {
	for _, u := range s.units {
		if len(fields) < len(u) {
			continue
		}
		match := true
		for i := range u {
			if fields[i] != u[i] {
				match = false
				break
			}
		}
		if match {
			return strings.Join(u, " "), fields[len(u):]
		}
	}
	return "", fields
}

func (s *Syntax) acceptsBus(min, max float64) bool {
	for _, r := range s.busRanges {
		if r.Contains(min, max) {
			return true
		}
	}
	return false
}
