package profile

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_VolumeConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewLedger(0.25, 0)

	var recorded int64
	for i := 0; i < 5000; i++ {
		price := 100 + rng.Float64()*20
		vol := rng.Int63n(500)
		require.NoError(t, l.Record(price, vol, i < 100))
		recorded += vol

		if i%250 == 0 {
			var sum int64
			for _, lv := range l.Snapshot() {
				sum += lv.Volume
			}
			assert.Equal(t, recorded, sum)
			assert.Equal(t, recorded, l.Total())
		}
	}
}

func TestLedger_RoundsToTickSize(t *testing.T) {
	l := NewLedger(0.25, 0)
	require.NoError(t, l.Record(100.1, 10, false))
	require.NoError(t, l.Record(100.13, 5, false))
	require.NoError(t, l.Record(99.99, 1, false))

	assert.Equal(t, int64(11), l.VolumeAt(100.0))
	assert.Equal(t, int64(5), l.VolumeAt(100.25))
	assert.Equal(t, 2, l.Levels())

	low, high, ok := l.Range()
	require.True(t, ok)
	assert.Equal(t, 100.0, low)
	assert.Equal(t, 100.25, high)
}

func TestLedger_PricesDoNotDrift(t *testing.T) {
	l := NewLedger(0.01, 0)
	require.NoError(t, l.Record(100.01, 1, false))
	assert.Equal(t, 100.01, l.Snapshot()[0].Price)
}

func TestLedger_RejectsInvalidInput(t *testing.T) {
	l := NewLedger(1, 0)
	require.NoError(t, l.Record(100, 10, true))

	cases := []struct {
		name   string
		price  float64
		volume int64
	}{
		{"nan", math.NaN(), 1},
		{"inf", math.Inf(1), 1},
		{"negative price", -1, 1},
		{"negative volume", 101, -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Record(tc.price, tc.volume, true)
			require.ErrorIs(t, err, ErrInvalidTick)
			assert.Equal(t, int64(10), l.Total())
			assert.Equal(t, 1, l.Levels())
		})
	}
}

func TestLedger_CapsSessionRange(t *testing.T) {
	l := NewLedger(1, 10)
	require.NoError(t, l.Record(100, 10, false))
	require.NoError(t, l.Record(109, 10, false))

	require.ErrorIs(t, l.Record(110, 10, false), ErrInvalidTick)
	require.ErrorIs(t, l.Record(1e13, 10, false), ErrInvalidTick)
	require.ErrorIs(t, l.Record(1e300, 10, false), ErrInvalidTick)
	assert.Equal(t, 2, l.Levels())
	assert.Equal(t, int64(20), l.Total())
	assert.Len(t, l.Distribution().Volumes, 10)

	assert.NoError(t, l.Admit(1e6, 1e6, true), "a fresh session ignores the current range")
	assert.ErrorIs(t, l.Admit(0, 1e6, true), ErrInvalidTick)
}

func TestLedger_InitialBalanceFrozenOutsideWindow(t *testing.T) {
	l := NewLedger(1, 0)
	require.NoError(t, l.Record(100, 10, true))
	require.NoError(t, l.Record(103, 20, true))
	require.NoError(t, l.Record(110, 50, false))
	require.NoError(t, l.Record(90, 50, false))

	ib := l.InitialBalance()
	assert.True(t, ib.Set)
	assert.Equal(t, 100.0, ib.Low)
	assert.Equal(t, 103.0, ib.High)
	assert.Equal(t, int64(30), ib.Volume)
	assert.Equal(t, 3.0, ib.Range())
}

func TestLedger_ResetClearsEverything(t *testing.T) {
	l := NewLedger(1, 0)
	require.NoError(t, l.Record(100, 10, true))
	l.Reset()

	assert.Zero(t, l.Total())
	assert.Zero(t, l.Levels())
	assert.False(t, l.InitialBalance().Set)
	_, _, ok := l.Range()
	assert.False(t, ok)
}

func TestLedger_DistributionIsDense(t *testing.T) {
	l := ledgerOf(1, map[float64]int64{100: 5, 104: 7})
	d := l.Distribution()

	assert.Equal(t, []int64{5, 0, 0, 0, 7}, d.Volumes)
	assert.Equal(t, 2, d.Occupied)
	assert.Equal(t, 6.0, d.AverageOccupied())
	assert.Equal(t, 102.0, d.PriceAt(2))
	assert.Equal(t, 3, d.PosOf(103))
}
