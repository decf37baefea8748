package metadata

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeName collapses internal whitespace and case-folds s. Parameter
// and port names are compared in this form.
func NormalizeName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// SameName reports whether a and b normalize to the same name.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// NormalizeGUID strips embedded spaces from an identifier code and lowercases it.
func NormalizeGUID(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}

// ValidGUID reports whether guid is a 4-character lowercase alphanumeric code.
func ValidGUID(guid string) bool {
	if len(guid) != 4 {
		return false
	}
	for _, r := range guid {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
