package manual

import (
	"strings"

	"algometa/internal/metadata"
)

// Row is one parameter row read from a table.
type Row struct {
	Name        string
	Min         metadata.Number
	Max         metadata.Number
	Default     metadata.Number
	Unit        string
	Description string
	Scope       metadata.Scope // hint from the block title, may be unspecified
	Line        int            // 1-based line in the source
}

// Ambiguity is a table line that yielded no row.
type Ambiguity struct {
	Line   int
	Text   string
	Reason string
}

// Table is what TableParser found in one section.
type Table struct {
	Rows      []Row
	Ambiguous []Ambiguity
}

type rowState int

const (
	stateIdle rowState = iota
	stateAccumulatingName
	stateContinuingDescription
)

type region int

const (
	regionNone region = iota
	regionUnfenced
	regionFenced
)

// TableParser extracts parameter rows from the table regions of a section.
type TableParser struct {
	syntax *Syntax
}

// NewTableParser returns a TableParser using syntax, or the default syntax
// when nil.
func NewTableParser(syntax *Syntax) *TableParser {
	if syntax == nil {
		syntax = DefaultSyntax()
	}
	return &TableParser{syntax: syntax}
}

// rowReader is the per-section name buffer state machine.
type rowReader struct {
	syntax  *Syntax
	table   Table
	state   rowState
	pending []string
	pendAt  int
	scope   metadata.Scope
}

// Parse reads every table region of sec.
func (p *TableParser) Parse(sec *Section) Table {
	r := &rowReader{syntax: p.syntax}
	var (
		reg   = regionNone
		title string
	)
	for i, raw := range sec.Lines {
		lineNo := sec.Start + i + 1
		trimmed := strings.TrimSpace(raw)

		if p.syntax.isFence(trimmed) {
			r.reset()
			switch reg {
			case regionFenced:
				reg = regionNone
			case regionNone:
				r.scope = p.syntax.scopeFor(title)
				reg = regionFenced
			case regionUnfenced:
				reg = regionFenced
			}
			continue
		}

		if reg == regionNone {
			if p.syntax.isColumnTitle(trimmed) {
				r.reset()
				r.scope = p.syntax.scopeFor(title)
				reg = regionUnfenced
				continue
			}
			if trimmed != "" && !isEmphasised(trimmed) {
				title = trimmed
			}
			continue
		}

		if trimmed == "" {
			r.reset()
			if reg == regionUnfenced {
				reg = regionNone
			}
			continue
		}
		if p.syntax.isColumnTitle(trimmed) {
			r.reset()
			continue
		}
		r.line(trimmed, lineNo)
	}
	r.reset()
	return r.table
}

// Rows is Parse without the ambiguity report.
func (p *TableParser) Rows(sec *Section) []Row {
	return p.Parse(sec).Rows
}

func (r *rowReader) reset() {
	if len(r.pending) > 0 {
		r.table.Ambiguous = append(r.table.Ambiguous, Ambiguity{
			Line:   r.pendAt,
			Text:   strings.Join(r.pending, " "),
			Reason: "name fragment without a numeric row",
		})
	}
	r.pending = nil
	r.state = stateIdle
}

func (r *rowReader) line(text string, lineNo int) {
	fields := strings.Fields(text)
	at := numberTriple(fields)
	if at < 0 {
		if r.state == stateContinuingDescription && r.continues() {
			last := &r.table.Rows[len(r.table.Rows)-1]
			last.Description += " " + text
			return
		}
		if len(r.pending) == 0 {
			r.pendAt = lineNo
		}
		r.pending = append(r.pending, text)
		r.state = stateAccumulatingName
		return
	}

	name := strings.Join(append(append([]string(nil), r.pending...), fields[:at]...), " ")
	r.pending = nil
	if name == "" {
		r.table.Ambiguous = append(r.table.Ambiguous, Ambiguity{Line: lineNo, Text: text, Reason: "row without a name"})
		r.state = stateIdle
		return
	}
	row := Row{Name: name, Scope: r.scope, Line: lineNo}
	row.Min, _ = metadata.ParseNumber(fields[at])
	row.Max, _ = metadata.ParseNumber(fields[at+1])
	row.Default, _ = metadata.ParseNumber(fields[at+2])
	unit, rest := r.syntax.matchUnit(fields[at+3:])
	row.Unit = unit
	row.Description = strings.Join(rest, " ")
	r.table.Rows = append(r.table.Rows, row)
	r.state = stateContinuingDescription
}

// continues reports whether the last row's description is still open.
func (r *rowReader) continues() bool {
	d := r.table.Rows[len(r.table.Rows)-1].Description
	if d == "" {
		return false
	}
	switch d[len(d)-1] {
	case '.', '!', '?':
		return false
	}
	return true
}

// numberTriple returns the index of the first of three consecutive number
// tokens, or -1.
func numberTriple(fields []string) int {
	for i := 0; i+2 < len(fields); i++ {
		if metadata.IsNumberToken(fields[i]) && metadata.IsNumberToken(fields[i+1]) && metadata.IsNumberToken(fields[i+2]) {
			return i
		}
	}
	return -1
}
