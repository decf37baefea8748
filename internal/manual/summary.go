package manual

import (
	"regexp"
	"strings"

	"algometa/internal/metadata"
)

// Summary is the prose part of a section.
type Summary struct {
	Description    string
	Specifications []metadata.Specification
}

var specBullet = regexp.MustCompile(`^(.*?),\s*(-?\d+)-(\d+):\s*(.*)$`)

// ReadSummary extracts the paragraph following a "Description" line and the
// bullet list following "Specifications:".
func ReadSummary(sec *Section) Summary {
	return Summary{
		Description:    description(sec.Lines),
		Specifications: specifications(sec.Lines),
	}
}

func description(lines []string) string {
	for i, l := range lines {
		if strings.TrimSpace(l) != "Description" {
			continue
		}
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		var para []string
		for ; j < len(lines) && strings.TrimSpace(lines[j]) != ""; j++ {
			para = append(para, lines[j])
		}
		return strings.Join(strings.Fields(strings.Join(para, " ")), " ")
	}
	return ""
}

func specifications(lines []string) []metadata.Specification {
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if !strings.HasPrefix(t, "Specifications:") {
			continue
		}
		tail := strings.TrimSpace(strings.TrimPrefix(t, "Specifications:"))
		if tail == "None" {
			return nil
		}
		var out []metadata.Specification
		if tail != "" {
			if spec, ok := specBulletItem(tail); ok {
				out = append(out, spec)
			}
		}
		started := false
		for _, next := range lines[i+1:] {
			b := strings.TrimSpace(next)
			if b == "" && !started {
				continue
			}
			if !strings.HasPrefix(b, "●") {
				break
			}
			spec, ok := specBulletItem(b)
			if !ok {
				break
			}
			started = true
			out = append(out, spec)
		}
		return out
	}
	return nil
}

func specBulletItem(text string) (metadata.Specification, bool) {
	m := specBullet.FindStringSubmatch(strings.TrimSpace(strings.TrimPrefix(text, "●")))
	if m == nil {
		return metadata.Specification{}, false
	}
	min, _ := metadata.ParseNumber(m[2])
	max, _ := metadata.ParseNumber(m[3])
	return metadata.Specification{
		Name:        strings.TrimSpace(m[1]),
		Min:         min,
		Max:         max,
		Description: strings.TrimSpace(m[4]),
	}, true
}
