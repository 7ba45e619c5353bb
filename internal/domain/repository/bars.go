package repository

import "time"

// BarSize is a supported bootstrap bar resolution.
type BarSize string

const (
	Bar1s BarSize = "1s"
	Bar1m BarSize = "1m"
	Bar5m BarSize = "5m"
)

// IsValidBarSize returns true if b is a supported bar size.
func IsValidBarSize(b BarSize) bool {
	switch b {
	case Bar1s, Bar1m, Bar5m:
		return true
	default:
		return false
	}
}

// NormalizeBarSize converts raw string to a valid bar size (or 1m).
func NormalizeBarSize(s string) BarSize {
	if b := BarSize(s); IsValidBarSize(b) {
		return b
	}
	return Bar1m
}

// Duration returns the bar length.
func (b BarSize) Duration() time.Duration {
	switch b {
	case Bar1s:
		return time.Second
	case Bar5m:
		return 5 * time.Minute
	default:
		return time.Minute
	}
}
