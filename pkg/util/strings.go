package util

import (
	"strconv"
	"strings"
)

// NormalizeSymbol trims and upper-cases an instrument symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseFloatLenient parses a float, accepting an empty string as zero.
func ParseFloatLenient(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
