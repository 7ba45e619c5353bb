package profile

import (
	"math/rand"
	"testing"

	"FinProfile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, cfg Config, levels map[float64]int64) Nodes {
	t.Helper()
	d := ledgerOf(cfg.TickSize, levels).Distribution()
	lv, ok := ReferenceLevels(d, cfg.ValueAreaTarget)
	require.True(t, ok)
	return ClassifyNodes(d, lv.POCVolume, cfg)
}

func TestClassifyNodes_SeparationGap(t *testing.T) {
	nodes := classify(t, unitConfig(), map[float64]int64{100: 1000, 105: 1000})

	require.Len(t, nodes.LVN, 1)
	gap := nodes.LVN[0]
	assert.Equal(t, 101.0, gap.Low)
	assert.Equal(t, 104.0, gap.High)
	assert.Equal(t, 4, gap.Levels)
	assert.Equal(t, models.GapSeparation, gap.Type)
	assert.Equal(t, models.GapModerate, gap.Strength)
	assert.Zero(t, gap.MinVolume)
	assert.Empty(t, nodes.HVN)
}

func TestClassifyNodes_HVNZone(t *testing.T) {
	nodes := classify(t, unitConfig(), map[float64]int64{
		100: 10, 101: 10, 102: 50, 103: 40, 104: 10, 105: 10, 106: 10,
	})

	require.Len(t, nodes.HVN, 1)
	z := nodes.HVN[0]
	assert.Equal(t, 102.0, z.Low)
	assert.Equal(t, 103.0, z.High)
	assert.Equal(t, 102.0, z.PeakPrice)
	assert.Equal(t, int64(50), z.PeakVolume)
	assert.Equal(t, int64(90), z.TotalVolume)
	assert.Equal(t, models.SignificanceMajor, z.Significance)
	assert.Equal(t, models.StrengthVeryStrong, z.Strength)
	assert.Empty(t, nodes.LVN)
}

func TestClassifyNodes_GapTypes(t *testing.T) {
	t.Run("rejection up", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 1000, 101: 50, 102: 50, 103: 50, 104: 120})
		require.Len(t, nodes.LVN, 1)
		assert.Equal(t, models.GapRejectionUp, nodes.LVN[0].Type)
		assert.Equal(t, 50.0, nodes.LVN[0].AvgVolume)
	})
	t.Run("rejection down", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 120, 101: 50, 102: 50, 103: 50, 104: 1000})
		require.Len(t, nodes.LVN, 1)
		assert.Equal(t, models.GapRejectionDown, nodes.LVN[0].Type)
	})
	t.Run("neutral", func(t *testing.T) {
		cfg := unitConfig()
		cfg.LVNRatio = 0.9
		nodes := classify(t, cfg, map[float64]int64{100: 60, 101: 30, 102: 30, 103: 30, 104: 60})
		require.Len(t, nodes.LVN, 1)
		assert.Equal(t, models.GapNeutral, nodes.LVN[0].Type)
		assert.Equal(t, models.GapWeak, nodes.LVN[0].Strength)
	})
}

func TestClassifyNodes_EdgeRuns(t *testing.T) {
	t.Run("lower tail", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 0, 101: 0, 102: 0, 103: 100, 104: 100})
		require.Len(t, nodes.LVN, 1)
		gap := nodes.LVN[0]
		assert.Equal(t, 100.0, gap.Low)
		assert.Equal(t, 102.0, gap.High)
		assert.Equal(t, 3, gap.Levels)
		assert.Equal(t, models.GapRejectionDown, gap.Type)
	})
	t.Run("upper tail", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 100, 101: 100, 102: 0, 103: 0, 104: 0})
		require.Len(t, nodes.LVN, 1)
		assert.Equal(t, 102.0, nodes.LVN[0].Low)
		assert.Equal(t, 104.0, nodes.LVN[0].High)
		assert.Equal(t, models.GapRejectionUp, nodes.LVN[0].Type)
	})
	t.Run("short run", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 1000, 103: 1000})
		assert.Empty(t, nodes.LVN)
	})
	t.Run("short tail", func(t *testing.T) {
		nodes := classify(t, unitConfig(), map[float64]int64{100: 0, 101: 0, 102: 100, 103: 100})
		assert.Empty(t, nodes.LVN)
	})
}

func TestGapStrength(t *testing.T) {
	assert.Equal(t, models.GapExtreme, gapStrength(0.05, 11))
	assert.Equal(t, models.GapStrong, gapStrength(0.05, 6))
	assert.Equal(t, models.GapStrong, gapStrength(0.15, 11))
	assert.Equal(t, models.GapModerate, gapStrength(0.25, 3))
	assert.Equal(t, models.GapModerate, gapStrength(0.29, 3))
	assert.Equal(t, models.GapWeak, gapStrength(0.31, 20))
}

func TestZoneSignificance(t *testing.T) {
	assert.Equal(t, models.SignificanceMajor, zoneSignificance(21, 100, 9))
	assert.Equal(t, models.SignificanceSignificant, zoneSignificance(21, 100, 10))
	assert.Equal(t, models.SignificanceSignificant, zoneSignificance(16, 100, 2))
	assert.Equal(t, models.SignificanceModerate, zoneSignificance(11, 100, 2))
	assert.Equal(t, models.SignificanceMinor, zoneSignificance(10, 100, 2))
}

func TestClassifyNodes_HVNAndLVNDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	cfg := unitConfig()
	for round := 0; round < 300; round++ {
		levels := map[float64]int64{}
		for i := 0; i < 40; i++ {
			if rng.Intn(3) > 0 {
				levels[float64(100+i)] = rng.Int63n(1000)
			}
		}
		if len(levels) == 0 {
			continue
		}
		nodes := classify(t, cfg, levels)
		for _, z := range nodes.HVN {
			for _, g := range nodes.LVN {
				overlap := z.Low <= g.High && g.Low <= z.High
				assert.False(t, overlap, "zone %v-%v overlaps gap %v-%v", z.Low, z.High, g.Low, g.High)
			}
		}
	}
}
