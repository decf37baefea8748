package metadata

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Number is a parameter bound or default. It keeps the JSON literal it was
// read from, so curated values such as 1.0 or "Off" are written back as they
// were found. The zero Number means absent.
type Number struct {
	lit string
}

var numberToken = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

// NewNumber returns f as a Number, written without a fraction when f is
// integer-valued.
func NewNumber(f float64) Number {
	if f == 0 {
		f = 0 // drop negative zero
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return Number{lit: strconv.FormatInt(int64(f), 10)}
	}
	return Number{lit: strconv.FormatFloat(f, 'f', -1, 64)}
}

// ParseNumber parses a manual number token such as "28", "-3" or "0.5".
// The Unicode minus sign found in typeset manuals is accepted.
func ParseNumber(s string) (Number, bool) {
	s = strings.Replace(strings.TrimSpace(s), "−", "-", 1)
	if !numberToken.MatchString(s) {
		return Number{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, false
	}
	return NewNumber(f), true
}

// IsNumberToken reports whether s would be accepted by ParseNumber.
func IsNumberToken(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// IsZero reports whether the number is absent. An empty string literal left
// behind by older tooling counts as absent too.
func (n Number) IsZero() bool { return n.lit == "" || n.lit == `""` }

// Float returns the numeric value. ok is false for absent or non-numeric
// values.
func (n Number) Float() (v float64, ok bool) {
	if n.lit == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.lit, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Equal compares numerically when both sides are numbers and literally
// otherwise.
func (n Number) Equal(m Number) bool {
	a, aok := n.Float()
	b, bok := m.Float()
	if aok && bok {
		return a == b
	}
	return n.lit == m.lit
}

func (n Number) String() string {
	if n.lit == "" {
		return "none"
	}
	var s string
	if json.Unmarshal([]byte(n.lit), &s) == nil {
		return s
	}
	return n.lit
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.lit == "" {
		return []byte("null"), nil
	}
	return []byte(n.lit), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.lit = ""
		return nil
	}
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	n.lit = string(data)
	return nil
}
