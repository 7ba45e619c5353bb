package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = ParseTime(strconv.FormatInt(want.UnixMilli()+250, 10))
	assert.True(t, ok)
	assert.Equal(t, want.Add(250*time.Millisecond), got)

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("", def))
}

func TestAlignRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 9, 33, 12, 0, time.UTC)
	to := time.Date(2024, 1, 1, 9, 47, 59, 0, time.UTC)
	f, e := AlignRange(from, to, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), f)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 45, 0, 0, time.UTC), e)
}

func TestSymbolAndFloat(t *testing.T) {
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("  btcusdt "))
	v, ok := ParseFloatLenient(" 1.5 ")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	v, ok = ParseFloatLenient("")
	assert.True(t, ok)
	assert.Zero(t, v)
	_, ok = ParseFloatLenient("x")
	assert.False(t, ok)
}
