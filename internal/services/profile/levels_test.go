package profile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceLevels_ThreeLevelExpansion(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{100: 50, 101: 200, 102: 50})

	lv, ok := ReferenceLevels(l.Distribution(), 0.70)
	require.True(t, ok)
	assert.Equal(t, 101.0, lv.POC)
	// the tie goes up first and 250 of 300 already covers the target
	assert.Equal(t, 101.0, lv.VAL)
	assert.Equal(t, 102.0, lv.VAH)
	assert.Equal(t, int64(250), lv.ValueAreaVolume)
	assert.InDelta(t, 250.0/300.0, lv.ValueAreaFraction, 1e-9)

	lv, _ = ReferenceLevels(l.Distribution(), 0.90)
	assert.Equal(t, 100.0, lv.VAL, "a higher target takes the lower side next")
	assert.Equal(t, 1.0, lv.ValueAreaFraction)
}

func TestReferenceLevels_TiePrefersUpper(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{98: 30, 99: 10, 100: 60, 101: 10, 102: 30})

	lv, ok := ReferenceLevels(l.Distribution(), 0.70)
	require.True(t, ok)
	assert.Equal(t, 100.0, lv.POC)
	assert.Equal(t, 100.0, lv.VAL)
	assert.Equal(t, 102.0, lv.VAH)
	assert.Equal(t, int64(100), lv.ValueAreaVolume)
}

func TestReferenceLevels_SingleLevel(t *testing.T) {
	l := ledgerOf(0.5, map[float64]int64{42.5: 9})

	lv, ok := ReferenceLevels(l.Distribution(), 0.70)
	require.True(t, ok)
	assert.Equal(t, 42.5, lv.POC)
	assert.Equal(t, lv.POC, lv.VAL)
	assert.Equal(t, lv.POC, lv.VAH)
	assert.Equal(t, 1.0, lv.ValueAreaFraction)
}

func TestReferenceLevels_Empty(t *testing.T) {
	_, ok := ReferenceLevels(NewLedger(1, 0).Distribution(), 0.70)
	assert.False(t, ok)
}

func TestReferenceLevels_POCTieBreak(t *testing.T) {
	t.Run("flat picks the median level", func(t *testing.T) {
		l := ledgerOf(1, map[float64]int64{100: 10, 101: 10, 102: 10})
		lv, _ := ReferenceLevels(l.Distribution(), 0.70)
		assert.Equal(t, 101.0, lv.POC)
	})
	t.Run("equidistant ties pick the lower level", func(t *testing.T) {
		l := ledgerOf(1, map[float64]int64{100: 10, 101: 5, 102: 10})
		lv, _ := ReferenceLevels(l.Distribution(), 0.70)
		assert.Equal(t, 100.0, lv.POC)
	})
	t.Run("tie nearest the weighted median wins", func(t *testing.T) {
		l := ledgerOf(1, map[float64]int64{100: 40, 101: 5, 102: 20, 103: 30, 104: 40})
		lv, _ := ReferenceLevels(l.Distribution(), 0.70)
		assert.Equal(t, 104.0, lv.POC)
	})
}

func TestReferenceLevels_ExpandsTowardHeavierSide(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{100: 10, 101: 30, 102: 20, 103: 5})

	lv, _ := ReferenceLevels(l.Distribution(), 0.70)
	assert.Equal(t, 101.0, lv.POC)
	assert.Equal(t, 101.0, lv.VAL)
	assert.Equal(t, 102.0, lv.VAH)
	assert.Equal(t, int64(50), lv.ValueAreaVolume)
}

func TestReferenceLevels_ExpansionCrossesEmptyLevels(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{100: 40, 103: 100, 104: 10})

	lv, _ := ReferenceLevels(l.Distribution(), 0.70)
	assert.Equal(t, 103.0, lv.POC)
	assert.Equal(t, 103.0, lv.VAL)
	assert.Equal(t, 104.0, lv.VAH)
	assert.GreaterOrEqual(t, lv.ValueAreaFraction, 0.70)
}

func TestReferenceLevels_ContainmentProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		l := NewLedger(0.5, 0)
		n := 1 + rng.Intn(300)
		for i := 0; i < n; i++ {
			require.NoError(t, l.Record(50+float64(rng.Intn(60))*0.5, 1+rng.Int63n(100), false))
		}
		target := 0.5 + rng.Float64()*0.5

		lv, ok := ReferenceLevels(l.Distribution(), target)
		require.True(t, ok)
		assert.LessOrEqual(t, lv.VAL, lv.POC)
		assert.LessOrEqual(t, lv.POC, lv.VAH)
		assert.GreaterOrEqual(t, lv.ValueAreaFraction, target)
		assert.Equal(t, l.Total(), lv.TotalVolume)
	}
}

func TestReferenceLevels_Idempotent(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{100: 3, 101: 9, 102: 9, 103: 1, 107: 4})
	first, _ := ReferenceLevels(l.Distribution(), 0.70)
	second, _ := ReferenceLevels(l.Distribution(), 0.70)
	assert.Equal(t, first, second)
}
