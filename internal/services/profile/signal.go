package profile

import (
	"math"
	"time"

	"FinProfile/internal/domain/models"
)

// Historical hit rates per setup family, used as the base expected win rate.
var baseWinRate = map[models.SignalType]float64{
	models.SignalNakedPOCTest:      0.65,
	models.SignalValueAreaRotation: 0.68,
	models.SignalHVNRangeFade:      0.60,
	models.SignalLVNBreakout:       0.55,
	models.SignalPOCRejection:      0.58,
}

// pick returns the first evaluation, in priority order, whose score is at
// the ceiling and whose trigger condition holds.
func pick(evs []evaluation) (evaluation, bool) {
	for _, ev := range evs {
		if ev.trigger && ev.score >= maxScore {
			return ev, true
		}
	}
	return evaluation{}, false
}

// gate applies the host's read-only risk counters. A zero limit disables it.
func gate(cfg Config, c models.HostCounters) (string, bool) {
	if cfg.MaxDailyPositions > 0 && c.DailyPositions >= cfg.MaxDailyPositions {
		return ReasonBlockedDaily, false
	}
	if cfg.MaxConsecutiveLosses > 0 && c.ConsecutiveLosses >= cfg.MaxConsecutiveLosses {
		return ReasonBlockedLosses, false
	}
	return "", true
}

// buildSignal prices a fired evaluation. The stop sits StopTicks beyond
// entry; a target closer than one tick falls back to 2R.
func buildSignal(cfg Config, ev evaluation, entry float64, ts time.Time, id string) *models.SignalDescriptor {
	risk := float64(cfg.StopTicks) * cfg.TickSize
	sign := 1.0
	if ev.direction == models.Short {
		sign = -1
	}

	target := ev.target
	if ev.setup == models.SignalNakedPOCTest || sign*(target-entry) < cfg.TickSize {
		target = entry + sign*2*risk
	}
	stop := entry - sign*risk

	winRate := baseWinRate[ev.setup]
	return &models.SignalDescriptor{
		ID:                 id,
		Type:               ev.setup,
		Direction:          ev.direction,
		EntryPrice:         entry,
		Stop:               roundTo(stop, cfg.TickSize),
		Target:             roundTo(target, cfg.TickSize),
		Confidence:         math.Min(0.95, winRate+0.05*float64(ev.bonus)),
		ExpectedWinRate:    winRate,
		ExpectedRewardRisk: math.Abs(target-entry) / risk,
		Reasoning:          ev.reasoning,
		Timestamp:          ts,
	}
}

func roundTo(price, tick float64) float64 {
	scale := math.Pow(10, float64(tickDecimals(tick)))
	return math.Round(math.Round(price/tick)*tick*scale) / scale
}
