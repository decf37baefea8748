package manual

import (
	"errors"
	"fmt"
	"strings"

	"algometa/internal/metadata"
)

// ErrIdentifierNotFound is returned when no section carries the requested
// identifier.
var ErrIdentifierNotFound = errors.New("identifier not found in manual")

// Source is one manual text, split into lines.
type Source struct {
	Name  string
	Lines []string
}

// NewSource splits text into lines. Both \n and \r\n endings are accepted.
func NewSource(name, text string) Source {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return Source{Name: name, Lines: lines}
}

// Section is the part of a manual describing one algorithm. Start and End
// are zero-based line offsets into the source; End is exclusive.
type Section struct {
	GUID   string
	Header string
	Source string
	Start  int
	End    int
	Lines  []string
}

func (s *Section) String() string {
	return fmt.Sprintf("%s (%s) %s:%d-%d", s.GUID, s.Header, s.Source, s.Start+1, s.End)
}

// Rejected is an identifier declaration whose code could not be used.
type Rejected struct {
	Source string
	Line   int
	Code   string
}

// Manual is the tokenized form of one or more manual sources.
type Manual struct {
	// Sections in first-occurrence order, one per identifier.
	Sections []*Section
	// Shadowed holds later occurrences of identifiers already taken by an
	// earlier source.
	Shadowed []*Section
	Rejected []Rejected

	byGUID map[string]*Section
}

// Section returns the section for guid, or nil.
func (m *Manual) Section(guid string) *Section {
	return m.byGUID[metadata.NormalizeGUID(guid)]
}

// Find is Section with an error for the missing case.
func (m *Manual) Find(guid string) (*Section, error) {
	if s := m.Section(guid); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrIdentifierNotFound, guid)
}

// GUIDs lists the identifiers in section order.
func (m *Manual) GUIDs() []string {
	out := make([]string, len(m.Sections))
	for i, s := range m.Sections {
		out[i] = s.GUID
	}
	return out
}

// Tokenizer splits manual sources into sections.
type Tokenizer struct {
	syntax *Syntax
}

// NewTokenizer returns a Tokenizer using syntax, or the default syntax when
// nil.
func NewTokenizer(syntax *Syntax) *Tokenizer {
	if syntax == nil {
		syntax = DefaultSyntax()
	}
	return &Tokenizer{syntax: syntax}
}

// Tokenize scans sources in order. Sources listed first take priority: when
// an identifier appears in several sources, the first section found wins.
func (t *Tokenizer) Tokenize(sources ...Source) *Manual {
	m := &Manual{byGUID: make(map[string]*Section)}
	for _, src := range sources {
		for _, sec := range t.scan(src, m) {
			if _, dup := m.byGUID[sec.GUID]; dup {
				m.Shadowed = append(m.Shadowed, sec)
				continue
			}
			m.byGUID[sec.GUID] = sec
			m.Sections = append(m.Sections, sec)
		}
	}
	return m
}

func (t *Tokenizer) scan(src Source, m *Manual) []*Section {
	var (
		out       []*Section
		cur       *Section
		header    string
		headerIdx = -1
	)
	closeAt := func(end int) {
		if cur == nil {
			return
		}
		cur.End = end
		cur.Lines = src.Lines[cur.Start:end]
		out = append(out, cur)
		cur = nil
	}

	for i, line := range src.Lines {
		if name, ok := t.syntax.headerName(line); ok {
			closeAt(i)
			header, headerIdx = name, i
			continue
		}
		code, ok := t.syntax.guidCode(line)
		if !ok {
			continue
		}
		guid := metadata.NormalizeGUID(code)
		if !metadata.ValidGUID(guid) {
			m.Rejected = append(m.Rejected, Rejected{Source: src.Name, Line: i + 1, Code: code})
			continue
		}
		// A second declaration under the same header starts at its own line.
		start := headerIdx
		if start < 0 || cur != nil {
			start = i
		}
		closeAt(i)
		cur = &Section{GUID: guid, Header: header, Source: src.Name, Start: start}
	}
	closeAt(len(src.Lines))
	return out
}
