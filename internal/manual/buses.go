package manual

import (
	"strings"

	"algometa/internal/metadata"
)

// Bus is a bus selector parameter found anywhere in a section.
type Bus struct {
	Name    string
	Min     metadata.Number
	Max     metadata.Number
	Default metadata.Number
	Line    int
}

// Buses scans every line of sec that mentions "bus" for a leading name
// followed by three numbers. Rows whose bounds fall outside the configured
// bus ranges are ignored, and names are deduplicated after normalization.
func (s *Syntax) Buses(sec *Section) []Bus {
	var out []Bus
	seen := make(map[string]bool)
	for i, raw := range sec.Lines {
		line := strings.TrimSpace(raw)
		if line == "" || !strings.Contains(strings.ToLower(line), "bus") {
			continue
		}
		m := s.busRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		min, ok1 := metadata.ParseNumber(m[2])
		max, ok2 := metadata.ParseNumber(m[3])
		def, ok3 := metadata.ParseNumber(m[4])
		if !ok1 || !ok2 || !ok3 || name == "" {
			continue
		}
		lo, _ := min.Float()
		hi, _ := max.Float()
		if !s.acceptsBus(lo, hi) {
			continue
		}
		key := metadata.NormalizeName(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Bus{Name: name, Min: min, Max: max, Default: def, Line: sec.Start + i + 1})
	}
	return out
}
