package manual

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algometa/internal/metadata"
)

const clockManual = "# Algorithms\n" +
	"\n" +
	"## Clock\n" +
	"\n" +
	"File format guid: 'clck'\n" +
	"\n" +
	"Description\n" +
	"\n" +
	"Generates clock pulses\n" +
	"  and resets.\n" +
	"\n" +
	"Specifications:\n" +
	"● Channels, 1-8: The number of clock channels.\n" +
	"\n" +
	"Routing parameters\n" +
	"\n" +
	"```\n" +
	"Name Min Max Default Unit Description\n" +
	"Output 1 28 15 The bus to use as output.\n" +
	"Reset\n" +
	"input 0 28 0 The bus to use as reset\n" +
	"input, or none.\n" +
	"```\n" +
	"\n" +
	"## Euclidean patterns…\n" +
	"\n" +
	"File format guid: ‘eu cp’\n" +
	"\n" +
	"Parameters\n" +
	"\n" +
	"**Name Min Max Default Unit Description**\n" +
	"Gain −40 6 0 dB Output level.\n" +
	"Bus 1 1 28 13 The clock bus.\n" +
	"\n" +
	"Outside the table 1 2 3.\n"

func tokenize(t *testing.T, sources ...Source) *Manual {
	t.Helper()
	return NewTokenizer(nil).Tokenize(sources...)
}

func TestTokenizeSections(t *testing.T) {
	m := tokenize(t, NewSource("manual.md", clockManual))

	assert.Equal(t, []string{"clck", "eucp"}, m.GUIDs())

	clck := m.Section("CLCK")
	require.NotNil(t, clck)
	assert.Equal(t, "Clock", clck.Header)
	assert.Equal(t, 2, clck.Start)
	assert.Equal(t, "## Clock", clck.Lines[0])
	assert.Equal(t, "```", clck.Lines[len(clck.Lines)-2])
	assert.Equal(t, "", clck.Lines[len(clck.Lines)-1])

	eucp := m.Section("eucp")
	require.NotNil(t, eucp)
	assert.Equal(t, "Euclidean patterns…", eucp.Header)
	assert.Equal(t, len(strings.Split(strings.TrimSuffix(clockManual, "\n"), "\n")), eucp.End)
}

func TestTokenizeFirstSourceWins(t *testing.T) {
	newer := NewSource("manual-1.10.md", "## Clock v2\nFile format guid: 'clck'\n")
	older := NewSource("manual-1.9.md", "## Clock\nFile format guid: 'clck'\n## Delay\nFile format guid: 'dely'\n")

	m := tokenize(t, newer, older)
	assert.Equal(t, []string{"clck", "dely"}, m.GUIDs())
	assert.Equal(t, "Clock v2", m.Section("clck").Header)
	require.Len(t, m.Shadowed, 1)
	assert.Equal(t, "manual-1.9.md", m.Shadowed[0].Source)
}

func TestTokenizeRejectsShortCodes(t *testing.T) {
	m := tokenize(t, NewSource("m", "## Broken\nFile format guid: 'ab c'\n"))
	assert.Empty(t, m.Sections)
	require.Len(t, m.Rejected, 1)
	assert.Equal(t, 2, m.Rejected[0].Line)
}

func TestTokenizeIdentifierFollowedByProse(t *testing.T) {
	tests := []struct {
		line     string
		guid     string
		rejected string
	}{
		{line: "File format guid: dlay since 1.9", guid: "dlay"},
		{line: "File format guid: ‘eu cp’ (expander)", guid: "eucp"},
		{line: "File format guid: 'clckx'", rejected: "clckx"},
		{line: "File format guid: abc def", rejected: "abc def"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			m := tokenize(t, NewSource("m", "## Algo\n"+tt.line+"\n"))
			if tt.guid != "" {
				assert.Equal(t, []string{tt.guid}, m.GUIDs())
				assert.Empty(t, m.Rejected)
				return
			}
			assert.Empty(t, m.Sections)
			require.Len(t, m.Rejected, 1)
			assert.Equal(t, tt.rejected, m.Rejected[0].Code)
		})
	}
}

func TestFindReportsMissingIdentifier(t *testing.T) {
	m := tokenize(t, NewSource("manual.md", clockManual))
	_, err := m.Find("zzzz")
	assert.True(t, errors.Is(err, ErrIdentifierNotFound))

	sec, err := m.Find("clck")
	require.NoError(t, err)
	assert.Equal(t, "clck", sec.GUID)
}

func TestParseClockTable(t *testing.T) {
	m := tokenize(t, NewSource("manual.md", clockManual))
	table := NewTableParser(nil).Parse(m.Section("clck"))

	got := make([]string, 0, len(table.Rows))
	for _, r := range table.Rows {
		got = append(got, strings.Join([]string{r.Name, r.Min.String(), r.Max.String(), r.Default.String(), r.Unit, r.Description, string(r.Scope)}, "|"))
	}
	want := []string{
		"Output|1|28|15||The bus to use as output.|routing",
		"Reset input|0|28|0||The bus to use as reset input, or none.|routing",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	assert.Empty(t, table.Ambiguous)
	assert.Equal(t, 19, table.Rows[0].Line)
}

func TestParseBoldTitleTable(t *testing.T) {
	m := tokenize(t, NewSource("manual.md", clockManual))
	rows := NewTableParser(nil).Rows(m.Section("eucp"))

	require.Len(t, rows, 2)
	assert.Equal(t, "Gain", rows[0].Name)
	assert.True(t, rows[0].Min.Equal(metadata.NewNumber(-40)))
	assert.Equal(t, "dB", rows[0].Unit)
	assert.Equal(t, "Output level.", rows[0].Description)
	assert.Equal(t, metadata.ScopeGlobal, rows[0].Scope)

	assert.Equal(t, "Bus", rows[1].Name, "first number triple wins")
	assert.Equal(t, "1", rows[1].Min.String())
}

func TestParseRowStates(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		wantRows  []string
		ambiguous int
	}{
		{
			name:     "wrapped name",
			lines:    []string{"```", "Formant", "input 1 28 1 Formant bus.", "```"},
			wantRows: []string{"Formant input"},
		},
		{
			name:      "fragments lost on blank line",
			lines:     []string{"```", "Lonely", "words", "", "Level 0 10 5 V", "```"},
			wantRows:  []string{"Level"},
			ambiguous: 1,
		},
		{
			name:      "header replica resets",
			lines:     []string{"```", "Stray", "Name Min Max Default Unit Description", "Level 0 10 5", "```"},
			wantRows:  []string{"Level"},
			ambiguous: 1,
		},
		{
			name:     "finished description starts a name",
			lines:    []string{"```", "Mix 0 100 50 % Wet amount.", "Dry", "level 0 100 100 %", "```"},
			wantRows: []string{"Mix", "Dry level"},
		},
		{
			name:      "prose after a full stop is not joined",
			lines:     []string{"```", "Mix 0 100 50 % Wet amount.", "Higher is wetter.", "", "```"},
			wantRows:  []string{"Mix"},
			ambiguous: 1,
		},
		{
			name:     "text outside a region is ignored",
			lines:    []string{"Level 0 10 5 V"},
			wantRows: nil,
		},
		{
			name:      "numbers without a name",
			lines:     []string{"```", "0 10 5", "```"},
			ambiguous: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := &Section{GUID: "test", Lines: tt.lines}
			table := NewTableParser(nil).Parse(sec)
			var names []string
			for _, r := range table.Rows {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.wantRows, names)
			assert.Len(t, table.Ambiguous, tt.ambiguous)
		})
	}
}

func TestUnitWhitelistIsWholeToken(t *testing.T) {
	sec := &Section{Lines: []string{"```", "Time 0 10 1 seconds of delay", "Channel 1 16 1 MIDI channel The channel.", "```"}}
	rows := NewTableParser(nil).Rows(sec)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].Unit)
	assert.Equal(t, "seconds of delay", rows[0].Description)
	assert.Equal(t, "MIDI channel", rows[1].Unit)
	assert.Equal(t, "The channel.", rows[1].Description)
}

func TestBuses(t *testing.T) {
	sec := &Section{Start: 10, Lines: []string{
		"Input 1 28 1 The input bus.",
		"Aux Output 1 8 1 The aux output bus.",
		"Output 0 28 13 The output bus.",
		"input 1 28 1 Duplicate bus.",
		"Level 0 10 5 Not a selector.",
	}}
	buses := DefaultSyntax().Buses(sec)
	require.Len(t, buses, 2)
	assert.Equal(t, "Input", buses[0].Name)
	assert.Equal(t, 11, buses[0].Line)
	assert.Equal(t, "Output", buses[1].Name)
	assert.Equal(t, "13", buses[1].Default.String())
}

func TestBusRangesAreConfigurable(t *testing.T) {
	syntax, err := NewSyntax(SyntaxOptions{BusRanges: []BusRange{{MinLow: 1, MinHigh: 1, MaxLow: 8, MaxHigh: 8}}})
	require.NoError(t, err)
	buses := syntax.Buses(&Section{Lines: []string{"Aux Output 1 8 1 The aux output bus."}})
	require.Len(t, buses, 1)
	assert.Equal(t, "Aux Output", buses[0].Name)

	_, err = NewSyntax(SyntaxOptions{BusRanges: []BusRange{{MinLow: 5, MinHigh: 1}}})
	assert.Error(t, err)
}

func TestReadSummary(t *testing.T) {
	m := tokenize(t, NewSource("manual.md", clockManual))
	sum := ReadSummary(m.Section("clck"))
	assert.Equal(t, "Generates clock pulses and resets.", sum.Description)
	require.Len(t, sum.Specifications, 1)
	assert.Equal(t, "Channels", sum.Specifications[0].Name)
	assert.Equal(t, "8", sum.Specifications[0].Max.String())

	empty := ReadSummary(m.Section("eucp"))
	assert.Empty(t, empty.Description)
	assert.Empty(t, empty.Specifications)
}

func TestScopeFor(t *testing.T) {
	s := DefaultSyntax()
	tests := map[string]metadata.Scope{
		"Routing parameters":        metadata.ScopeRouting,
		"Per-channel parameters":    metadata.ScopeChannel,
		"Per-step parameters":       metadata.ScopeStep,
		"Per-expression parameters": metadata.ScopeExpression,
		"Randomise parameters":      metadata.ScopeRandomise,
		"Globals parameters":        metadata.ScopeGlobal,
		"Parameters":                metadata.ScopeGlobal,
		"Some prose":                metadata.ScopeUnspecified,
	}
	for title, want := range tests {
		assert.Equal(t, want, s.scopeFor(title), title)
	}
}
