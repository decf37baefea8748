package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algometa/internal/manual"
	"algometa/internal/metadata"
)

func num(f float64) metadata.Number { return metadata.NewNumber(f) }

func row(name string, min, max, def float64, desc string) manual.Row {
	return manual.Row{Name: name, Min: num(min), Max: num(max), Default: num(def), Description: desc}
}

func encode(t *testing.T, rec *metadata.AlgorithmRecord) string {
	t.Helper()
	out, err := metadata.Encode(rec)
	require.NoError(t, err)
	return string(out)
}

func TestRowsClockEndToEnd(t *testing.T) {
	const text = "## Clock\nFile format guid: 'clck'\n```\nOutput 1 28 15 The bus to use as output.\n```\n"
	m := manual.NewTokenizer(nil).Tokenize(manual.NewSource("manual.md", text))
	sec, err := m.Find("clck")
	require.NoError(t, err)

	rec := metadata.NewRecord("clck", sec.Header)
	c := Rows(rec, manual.NewTableParser(nil).Rows(sec))

	assert.Equal(t, []string{"Output"}, c.ParamsAdded)
	assert.Equal(t, []string{"output:Output"}, c.PortsAdded)

	p := rec.FindParameter("Output")
	require.NotNil(t, p)
	assert.Equal(t, "1", p.Min.String())
	assert.Equal(t, "28", p.Max.String())
	assert.Equal(t, "15", p.Default.String())
	assert.Equal(t, metadata.ScopeRouting, p.Scope)

	require.Len(t, rec.OutputPorts, 1)
	assert.Equal(t, "Output", rec.OutputPorts[0].BusIDRef)
	assert.Empty(t, rec.InputPorts)
}

func TestRowsIsIdempotent(t *testing.T) {
	rows := []manual.Row{
		row("Output", 1, 28, 15, "The bus to use as output."),
		row("CV Input", 0, 28, 0, ""),
		row("Level", 0, 10, 5, "Level."),
	}
	rec := metadata.NewRecord("abcd", "A")
	first := Rows(rec, rows)
	require.False(t, first.Empty())
	once := encode(t, rec)

	second := Rows(rec, rows)
	assert.True(t, second.Empty(), second.String())
	if diff := cmp.Diff(once, encode(t, rec)); diff != "" {
		t.Fatalf("second pass changed the record:\n%s", diff)
	}
	assert.Len(t, rec.InputPorts, 1)
	assert.Len(t, rec.OutputPorts, 1)
}

func TestRowsNeverOverwrite(t *testing.T) {
	rec, err := metadata.Decode([]byte(`{"guid":"abcd","parameters":[{"name":"Channels","min":1,"max":8,"scope":"global"}]}`))
	require.NoError(t, err)

	c := Rows(rec, []manual.Row{{
		Name: "channels", Min: num(0), Max: num(7), Default: num(4), Unit: "V",
		Description: "How many.", Scope: metadata.ScopeRouting,
	}})

	p := rec.FindParameter("Channels")
	require.NotNil(t, p)
	assert.Equal(t, "1", p.Min.String())
	assert.Equal(t, "8", p.Max.String())
	assert.Equal(t, "4", p.Default.String())
	assert.Equal(t, "V", p.Unit)
	assert.Equal(t, metadata.ScopeGlobal, p.Scope)
	assert.ElementsMatch(t, []string{"Channels.default", "Channels.unit", "Channels.description"}, c.FieldsFilled)
	assert.Empty(t, c.ParamsAdded)
}

func TestRowsNormalizedNamesMerge(t *testing.T) {
	rec := metadata.NewRecord("abcd", "")
	Rows(rec, []manual.Row{row("Output 1", 1, 28, 13, ""), row("output  1", 0, 0, 0, "Second copy.")})

	require.Len(t, rec.Parameters, 1)
	assert.Equal(t, "Second copy.", rec.Parameters[0].Description)
	assert.Empty(t, rec.DuplicateParameters())
}

func TestRowsScopeHint(t *testing.T) {
	rec := metadata.NewRecord("abcd", "")
	r := row("Rate", 0, 10, 1, "")
	r.Scope = metadata.ScopeChannel
	Rows(rec, []manual.Row{r})
	assert.Equal(t, metadata.ScopeChannel, rec.Parameters[0].Scope)
	assert.Empty(t, rec.OutputPorts)
}

func TestRowsSkipExistingPort(t *testing.T) {
	rec, err := metadata.Decode([]byte(`{"guid":"abcd","parameters":[],"input_ports":[{"name":"Audio","busIdRef":"Audio input"}]}`))
	require.NoError(t, err)

	c := Rows(rec, []manual.Row{row("Audio input", 1, 28, 1, "")})
	assert.Empty(t, c.PortsAdded)
	assert.Len(t, rec.InputPorts, 1)
}

func TestBusesConvertBarePorts(t *testing.T) {
	rec, err := metadata.Decode([]byte(`{"guid":"abcd","parameters":[{"name":"Input","description":"Curated."}],"input_ports":["Input"],"output_ports":[]}`))
	require.NoError(t, err)

	c := Buses(rec, []manual.Bus{
		{Name: "Input", Min: num(1), Max: num(28), Default: num(1)},
		{Name: "Left/mono out", Min: num(0), Max: num(28), Default: num(13)},
	})
	assert.Equal(t, []string{"Left/mono out"}, c.ParamsAdded)
	assert.Equal(t, []string{"Input"}, c.PortsConverted)
	assert.Equal(t, []string{"output:Left/mono out"}, c.PortsAdded)

	in := rec.FindParameter("input")
	assert.Equal(t, "bus", in.Unit)
	assert.Equal(t, metadata.ScopeRouting, in.Scope)
	assert.Equal(t, "Curated.", in.Description)
	assert.False(t, rec.InputPorts[0].IsBare())

	again := Buses(rec, []manual.Bus{{Name: "Input", Min: num(1), Max: num(28), Default: num(1)}})
	assert.True(t, again.Empty())
}

func TestFillSummary(t *testing.T) {
	rec := metadata.NewRecord("abcd", "")
	sum := manual.Summary{
		Description:    "Does things.",
		Specifications: []metadata.Specification{{Name: "Channels", Min: num(1), Max: num(8)}},
	}
	c := FillSummary(rec, sum)
	assert.Equal(t, []string{"description", "specifications"}, c.FieldsFilled)

	rec.Description = "Curated."
	assert.True(t, FillSummary(rec, manual.Summary{Description: "Other."}).Empty())
	assert.Equal(t, "Curated.", rec.Description)
}

func TestMergeRecord(t *testing.T) {
	rec, err := metadata.Decode([]byte(`{"guid":"abcd","name":"abcd","categories":[],"parameters":[{"name":"Mode","default":"Off"}],"output_ports":[]}`))
	require.NoError(t, err)
	in, err := metadata.Decode([]byte(`{"guid":"abcd","name":"Arpeggiator","categories":["Sequencer"],"description":"Plays notes.",
		"parameters":[{"name":"mode","default":"On","enumValues":["Off","On"]},{"name":"Gate output","min":1,"max":28,"isPerChannel":true}],
		"output_ports":[{"name":"Gate output","busIdRef":"Gate output"}]}`))
	require.NoError(t, err)

	c := MergeRecord(rec, in)
	assert.Equal(t, "Arpeggiator", rec.Name)
	assert.Equal(t, []string{"Sequencer"}, rec.Categories)
	assert.Equal(t, "Plays notes.", rec.Description)
	assert.Equal(t, []string{"Gate output"}, c.ParamsAdded)
	assert.Equal(t, []string{"output:Gate output"}, c.PortsAdded)

	mode := rec.FindParameter("Mode")
	assert.Equal(t, "Off", mode.Default.String())
	assert.Equal(t, []string{"Off", "On"}, mode.EnumValues)

	assert.Contains(t, encode(t, rec), `"isPerChannel": true`)
	assert.True(t, MergeRecord(rec, in).Empty())
}
