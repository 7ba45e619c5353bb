package profile

import (
	"math/rand"
	"testing"
	"time"

	"FinProfile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseMarket(price float64) market {
	return market{
		price:      price,
		tickVolume: 100,
		volumeReal: true,
		levels:     models.ReferenceLevels{POC: 110, VAL: 100, VAH: 120},
		phase:      models.PhaseMidSession,
	}
}

func TestScorer_NakedPOCBands(t *testing.T) {
	s := newScorer(unitConfig())
	cases := []struct {
		price float64
		want  float64
	}{
		{100, 10}, {105, 10}, {108, 8}, {115, 5}, {125, 3}, {135, 1}, {140, 0}, {60, 0},
	}
	for _, tc := range cases {
		m := baseMarket(tc.price)
		m.naked = []models.NakedPOC{{Price: 100, Strength: 0.2}}
		ev := s.nakedPOC(m)
		assert.Equal(t, tc.want, ev.score, "price %v", tc.price)
		assert.Equal(t, tc.price >= 95 && tc.price <= 105, ev.trigger, "price %v", tc.price)
	}
}

func TestScorer_NakedPOCBonus(t *testing.T) {
	s := newScorer(unitConfig())

	m := baseMarket(108)
	m.naked = []models.NakedPOC{{Price: 100, Strength: 0.40}}
	assert.Equal(t, 10.0, s.nakedPOC(m).score)

	m.naked[0].Strength = 0.30
	assert.Equal(t, 9.0, s.nakedPOC(m).score)

	m = baseMarket(150)
	m.naked = []models.NakedPOC{{Price: 100, Strength: 0.40}}
	assert.Zero(t, s.nakedPOC(m).score, "no bonus without a base score")
}

func TestScorer_ValueAreaRotation(t *testing.T) {
	s := newScorer(unitConfig())

	ev := s.valueAreaRotation(baseMarket(101))
	assert.Equal(t, 10.0, ev.score)
	assert.True(t, ev.trigger)
	assert.Equal(t, models.Long, ev.direction)
	assert.Equal(t, 120.0, ev.target)

	ev = s.valueAreaRotation(baseMarket(119))
	assert.True(t, ev.trigger)
	assert.Equal(t, models.Short, ev.direction)
	assert.Equal(t, 100.0, ev.target)

	ev = s.valueAreaRotation(baseMarket(110))
	assert.Equal(t, 4.0, ev.score)
	assert.False(t, ev.trigger)

	ev = s.valueAreaRotation(baseMarket(105))
	assert.InDelta(t, 7.0, ev.score, 1e-9)

	assert.Zero(t, s.valueAreaRotation(baseMarket(125)).score)

	m := baseMarket(101)
	m.phase = models.PhaseOpening
	assert.Zero(t, s.valueAreaRotation(m).score)
}

func TestScorer_HVNFade(t *testing.T) {
	s := newScorer(unitConfig())
	zone := models.HVNZone{Low: 100, High: 104, Strength: models.StrengthStrong}

	m := baseMarket(105)
	m.nodes.HVN = []models.HVNZone{zone}
	ev := s.hvnFade(m)
	assert.Equal(t, 10.0, ev.score)
	assert.True(t, ev.trigger)
	assert.Equal(t, models.Short, ev.direction)
	assert.Equal(t, 102.0, ev.target)

	m.price = 110
	ev = s.hvnFade(m)
	assert.Equal(t, 5.0, ev.score)
	assert.False(t, ev.trigger)

	m.price = 98
	ev = s.hvnFade(m)
	assert.Equal(t, 9.0, ev.score)
	assert.Equal(t, models.Long, ev.direction)

	m.nodes.HVN[0].Strength = models.StrengthWeak
	assert.Zero(t, s.hvnFade(m).score)
}

func TestScorer_LVNBreakout(t *testing.T) {
	s := newScorer(unitConfig())
	gap := models.LVNGap{Low: 100, High: 105, Levels: 6}

	m := baseMarket(102)
	m.nodes.LVN = []models.LVNGap{gap}
	m.prevPrice, m.hasPrev = 101, true
	ev := s.lvnBreakout(m)
	assert.Equal(t, 10.0, ev.score)
	assert.True(t, ev.trigger)
	assert.Equal(t, models.Long, ev.direction)
	assert.Equal(t, 105.0, ev.target)

	m.prevPrice = 103
	ev = s.lvnBreakout(m)
	assert.Equal(t, models.Short, ev.direction)
	assert.Equal(t, 100.0, ev.target)

	m.prevPrice = 102
	ev = s.lvnBreakout(m)
	assert.Equal(t, 10.0, ev.score)
	assert.False(t, ev.trigger, "no direction without movement")

	m.price = 108
	assert.Equal(t, 5.0, s.lvnBreakout(m).score)

	m.nodes.LVN = []models.LVNGap{{Low: 100, High: 100, Levels: 1}}
	assert.Zero(t, s.lvnBreakout(m).score)
}

func TestScorer_LVNWidthInTicks(t *testing.T) {
	s := newScorer(unitConfig())
	cases := []struct {
		levels int
		want   float64
	}{
		{2, 0}, {3, 4}, {5, 4}, {6, 5}, {9, 5}, {10, 6},
	}
	for _, tc := range cases {
		high := 100 + float64(tc.levels-1)
		m := baseMarket(high + 3)
		m.nodes.LVN = []models.LVNGap{{Low: 100, High: high, Levels: tc.levels}}
		assert.Equal(t, tc.want, s.lvnBreakout(m).score, "levels %d", tc.levels)
	}
}

func TestScorer_POCRejection(t *testing.T) {
	cfg := unitConfig()
	cfg.MinTickVolume = 10
	s := newScorer(cfg)

	m := baseMarket(111)
	m.tickVolume = 1
	m.prevPrice, m.hasPrev = 113, true
	ev := s.pocRejection(m)
	assert.Equal(t, 10.0, ev.score)
	assert.True(t, ev.trigger)
	assert.Equal(t, models.Long, ev.direction)
	assert.Equal(t, 120.0, ev.target)

	m.volumeReal = false
	ev = s.pocRejection(m)
	assert.Equal(t, 8.0, ev.score)
	assert.False(t, ev.trigger)

	for price, want := range map[float64]float64{115: 6, 121: 4, 129: 2, 140: 1} {
		assert.Equal(t, want, s.pocRejection(baseMarket(price)).score, "price %v", price)
	}
}

func TestScorer_ScoresStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := newScorer(unitConfig())
	for i := 0; i < 2000; i++ {
		m := baseMarket(80 + rng.Float64()*60)
		m.tickVolume = rng.Int63n(20)
		m.prevPrice, m.hasPrev = 80+rng.Float64()*60, rng.Intn(2) == 0
		m.naked = []models.NakedPOC{{Price: 80 + rng.Float64()*60, Strength: rng.Float64()}}
		m.nodes.HVN = []models.HVNZone{{Low: 105, High: 108, Strength: models.StrengthVeryStrong}}
		m.nodes.LVN = []models.LVNGap{{Low: 112, High: 125, Levels: 14}}
		for _, ev := range s.evaluate(m) {
			assert.GreaterOrEqual(t, ev.score, 0.0)
			assert.LessOrEqual(t, ev.score, 10.0)
		}
	}
}

func TestPick_FollowsPriority(t *testing.T) {
	evs := []evaluation{
		{setup: models.SignalNakedPOCTest, score: 8},
		{setup: models.SignalValueAreaRotation, score: 10, trigger: false},
		{setup: models.SignalHVNRangeFade, score: 10, trigger: true},
		{setup: models.SignalLVNBreakout, score: 10, trigger: true},
	}
	ev, ok := pick(evs)
	require.True(t, ok)
	assert.Equal(t, models.SignalHVNRangeFade, ev.setup)

	_, ok = pick(evs[:2])
	assert.False(t, ok)
}

func TestGate(t *testing.T) {
	cfg := unitConfig()

	_, ok := gate(cfg, models.HostCounters{DailyPositions: 2, ConsecutiveLosses: 2})
	assert.True(t, ok)

	reason, ok := gate(cfg, models.HostCounters{DailyPositions: 3})
	assert.False(t, ok)
	assert.Equal(t, ReasonBlockedDaily, reason)

	reason, ok = gate(cfg, models.HostCounters{ConsecutiveLosses: 3})
	assert.False(t, ok)
	assert.Equal(t, ReasonBlockedLosses, reason)

	cfg.MaxDailyPositions = 0
	_, ok = gate(cfg, models.HostCounters{DailyPositions: 100})
	assert.True(t, ok)
}

func TestBuildSignal(t *testing.T) {
	cfg := DefaultConfig()
	ts := day0.Add(time.Hour)

	sig := buildSignal(cfg, evaluation{
		setup:     models.SignalValueAreaRotation,
		direction: models.Short,
		target:    99.50,
		bonus:     1,
	}, 100.00, ts, "id-1")
	assert.Equal(t, "id-1", sig.ID)
	assert.Equal(t, 100.08, sig.Stop)
	assert.Equal(t, 99.50, sig.Target)
	assert.InDelta(t, 6.25, sig.ExpectedRewardRisk, 1e-9)
	assert.InDelta(t, 0.73, sig.Confidence, 1e-9)
	assert.Equal(t, ts, sig.Timestamp)

	naked := buildSignal(cfg, evaluation{setup: models.SignalNakedPOCTest, direction: models.Long}, 50.00, ts, "id-2")
	assert.Equal(t, 49.92, naked.Stop)
	assert.Equal(t, 50.16, naked.Target)
	assert.InDelta(t, 2.0, naked.ExpectedRewardRisk, 1e-9)

	fallback := buildSignal(cfg, evaluation{setup: models.SignalHVNRangeFade, direction: models.Long, target: 50.00}, 50.00, ts, "id-3")
	assert.Equal(t, 50.16, fallback.Target)
}
