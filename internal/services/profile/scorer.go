package profile

import (
	"fmt"
	"math"

	"FinProfile/internal/domain/models"
)

const maxScore = 10.0

// market is everything the scorer reads for one tick.
type market struct {
	price      float64
	prevPrice  float64
	hasPrev    bool
	tickVolume int64
	volumeReal bool

	levels models.ReferenceLevels
	nodes  Nodes
	naked  []models.NakedPOC
	phase  models.SessionPhase
}

// evaluation is one setup's score plus what a fired signal would carry.
type evaluation struct {
	setup     models.SignalType
	score     float64
	trigger   bool
	direction models.Direction
	target    float64
	bonus     int
	reasoning string
}

// scorer turns tick context into five setup evaluations.
type scorer struct {
	cfg  Config
	tick float64
}

func newScorer(cfg Config) scorer { return scorer{cfg: cfg, tick: cfg.TickSize} }

func (s scorer) ticks(a, b float64) float64 { return math.Abs(a-b) / s.tick }

// evaluate scores every setup in priority order.
func (s scorer) evaluate(m market) []evaluation {
	return []evaluation{
		s.nakedPOC(m),
		s.valueAreaRotation(m),
		s.hvnFade(m),
		s.lvnBreakout(m),
		s.pocRejection(m),
	}
}

func clampScore(v float64) float64 { return math.Max(0, math.Min(maxScore, v)) }

func (s scorer) nakedPOC(m market) evaluation {
	ev := evaluation{setup: models.SignalNakedPOCTest}
	if len(m.naked) == 0 {
		return ev
	}
	nearest := m.naked[0]
	best := s.ticks(m.price, nearest.Price)
	for _, n := range m.naked[1:] {
		if d := s.ticks(m.price, n.Price); d < best {
			nearest, best = n, d
		}
	}

	mag := float64(s.cfg.MagnetDistance)
	var base float64
	switch {
	case best <= mag:
		base = 10
	case best <= 2*mag:
		base = 8
	case best <= 4*mag:
		base = 5
	case best <= 6*mag:
		base = 3
	case best < 8*mag:
		base = 1
	}
	if base > 0 {
		if nearest.Strength > 0.25 {
			ev.bonus++
		}
		if nearest.Strength > 0.35 {
			ev.bonus++
		}
	}
	ev.score = clampScore(base + float64(ev.bonus))
	ev.trigger = best <= mag

	from := m.price
	if m.hasPrev {
		from = m.prevPrice
	}
	ev.direction = models.Long
	if from < nearest.Price {
		ev.direction = models.Short
	}
	ev.reasoning = fmt.Sprintf("price %.2f ticks from naked POC %v (strength %.2f)", best, nearest.Price, nearest.Strength)
	return ev
}

func (s scorer) valueAreaRotation(m market) evaluation {
	ev := evaluation{setup: models.SignalValueAreaRotation}
	lv := m.levels
	if m.phase != models.PhaseMidSession || m.price < lv.VAL || m.price > lv.VAH {
		return ev
	}
	half := (lv.VAH - lv.VAL) / 2 / s.tick
	if half <= 0 {
		ev.score = 4
		return ev
	}
	toVAL := (m.price - lv.VAL) / s.tick
	toVAH := (lv.VAH - m.price) / s.tick
	edge := math.Min(toVAL, toVAH)

	ev.score = clampScore(10 - 6*edge/half)
	if edge <= float64(s.cfg.EdgeTicks) {
		ev.score = maxScore
		ev.trigger = true
	}
	if toVAL <= toVAH {
		ev.direction, ev.target = models.Long, lv.VAH
		ev.reasoning = fmt.Sprintf("inside value %.1f ticks above VAL %v, rotation toward VAH %v", toVAL, lv.VAL, lv.VAH)
	} else {
		ev.direction, ev.target = models.Short, lv.VAL
		ev.reasoning = fmt.Sprintf("inside value %.1f ticks below VAH %v, rotation toward VAL %v", toVAH, lv.VAH, lv.VAL)
	}
	return ev
}

// zoneDistance is the tick distance from price to the nearest zone edge.
func (s scorer) zoneDistance(price float64, z models.HVNZone) float64 {
	switch {
	case price < z.Low:
		return s.ticks(price, z.Low)
	case price > z.High:
		return s.ticks(price, z.High)
	default:
		return math.Min(s.ticks(price, z.Low), s.ticks(price, z.High))
	}
}

func (s scorer) hvnFade(m market) evaluation {
	ev := evaluation{setup: models.SignalHVNRangeFade}
	var zone *models.HVNZone
	best := math.Inf(1)
	for i := range m.nodes.HVN {
		z := &m.nodes.HVN[i]
		if z.Strength == models.StrengthWeak {
			continue
		}
		if d := s.zoneDistance(m.price, *z); d < best {
			zone, best = z, d
		}
	}
	if zone == nil {
		return ev
	}

	var base float64
	switch {
	case best <= 1:
		base = 10
	case best <= 2:
		base = 8
	case best <= 4:
		base = 6
	case best <= 8:
		base = 4
	default:
		base = 1
	}
	switch zone.Strength {
	case models.StrengthVeryStrong:
		ev.bonus = 2
	case models.StrengthStrong:
		ev.bonus = 1
	}
	ev.score = clampScore(base + float64(ev.bonus))
	ev.trigger = best <= 1

	mid := (zone.Low + zone.High) / 2
	ev.target = mid
	ev.direction = models.Long
	if m.price > mid {
		ev.direction = models.Short
	}
	ev.reasoning = fmt.Sprintf("%s HVN %v-%v, %.1f ticks from edge", zone.Strength, zone.Low, zone.High, best)
	return ev
}

func (s scorer) lvnBreakout(m market) evaluation {
	ev := evaluation{setup: models.SignalLVNBreakout}
	var gap *models.LVNGap
	best := math.Inf(1)
	for i := range m.nodes.LVN {
		g := &m.nodes.LVN[i]
		if g.Levels-1 < 2 {
			continue
		}
		var d float64
		switch {
		case m.price < g.Low:
			d = s.ticks(m.price, g.Low)
		case m.price > g.High:
			d = s.ticks(m.price, g.High)
		}
		if d < best {
			gap, best = g, d
		}
	}
	if gap == nil {
		return ev
	}

	var base float64
	switch {
	case best == 0:
		base = 10
	case best <= 2:
		base = 7
	case best <= 4:
		base = 4
	case best <= 6:
		base = 2
	default:
		base = 1
	}
	// Width in ticks spans one less than the level count.
	width := gap.Levels - 1
	if width > 4 {
		ev.bonus++
	}
	if width > 8 {
		ev.bonus++
	}
	ev.score = clampScore(base + float64(ev.bonus))

	switch {
	case !m.hasPrev || m.price == m.prevPrice:
		return ev
	case m.price > m.prevPrice:
		ev.direction, ev.target = models.Long, gap.High
	default:
		ev.direction, ev.target = models.Short, gap.Low
	}
	ev.trigger = best == 0
	ev.reasoning = fmt.Sprintf("%s %s LVN %v-%v (%d levels)", gap.Strength, gap.Type, gap.Low, gap.High, gap.Levels)
	return ev
}

func (s scorer) pocRejection(m market) evaluation {
	ev := evaluation{setup: models.SignalPOCRejection}
	lv := m.levels
	d := s.ticks(m.price, lv.POC)

	lowVolume := m.volumeReal && float64(m.tickVolume) < 0.7*float64(s.cfg.MinTickVolume)
	switch {
	case d <= 3 && lowVolume:
		ev.score = 10
		ev.trigger = true
	case d <= 3:
		ev.score = 8
	case d <= 6:
		ev.score = 6
	case d <= 12:
		ev.score = 4
	case d <= 20:
		ev.score = 2
	default:
		ev.score = 1
	}

	from := m.price
	if m.hasPrev {
		from = m.prevPrice
	}
	switch {
	case from > lv.POC:
		ev.direction, ev.target = models.Long, lv.VAH
	case from < lv.POC:
		ev.direction, ev.target = models.Short, lv.VAL
	default:
		ev.trigger = false
	}
	ev.reasoning = fmt.Sprintf("%.1f ticks from POC %v on %d volume", d, lv.POC, m.tickVolume)
	return ev
}

// scores flattens evaluations for reporting.
func scores(evs []evaluation) []models.SignalScore {
	out := make([]models.SignalScore, len(evs))
	for i, ev := range evs {
		out[i] = models.SignalScore{Setup: ev.setup, Score: ev.score}
	}
	return out
}
