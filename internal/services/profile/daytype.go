package profile

import (
	"time"

	"FinProfile/internal/domain/models"
)

// ClassifyDay labels the session from its initial balance and distribution.
func ClassifyDay(ib models.InitialBalance, sessionRange float64, d Distribution, cfg Config) models.DayType {
	ibRange := ib.Range()
	if ibRange <= 0 {
		return models.DayUnknown
	}
	ratio := sessionRange / ibRange

	switch {
	case ratio < 0.7 && ib.Volume < cfg.MinIBVolume:
		return models.DayNeutral
	case ratio < cfg.TrendThreshold:
		return models.DayTrend
	case ratio > cfg.NormalThreshold:
		if countDistributions(d) >= 2 {
			return models.DayDoubleDistribution
		}
		return models.DayNormal
	default:
		return models.DayNormalVariation
	}
}

// countDistributions counts runs above 1.5x the average separated by at
// least one level below the average.
func countDistributions(d Distribution) int {
	avg := d.AverageOccupied()
	if avg == 0 {
		return 0
	}
	peaks := 0
	inPeak := false
	for _, v := range d.Volumes {
		fv := float64(v)
		switch {
		case fv > 1.5*avg && !inPeak:
			peaks++
			inPeak = true
		case fv < avg:
			inPeak = false
		}
	}
	return peaks
}

// session tracks the clock of one trading session.
type session struct {
	start  time.Time
	length time.Duration
	ib     time.Duration
	late   time.Duration
}

// sessionStartFor returns the start of the session that ts belongs to.
func sessionStartFor(ts time.Time, loc *time.Location, offset time.Duration) time.Time {
	shifted := ts.In(loc).Add(-offset)
	y, m, day := shifted.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc).Add(offset)
}

func (s session) inIB(ts time.Time) bool {
	return ibWindowContains(s.start, s.ib, ts)
}

// phase places ts inside the session clock.
func (s session) phase(ts time.Time) models.SessionPhase {
	elapsed := ts.Sub(s.start)
	switch {
	case elapsed < 0 || elapsed >= s.length:
		return models.PhaseAfterHours
	case elapsed < s.ib:
		return models.PhaseOpening
	case elapsed >= s.length-s.late:
		return models.PhaseLate
	default:
		return models.PhaseMidSession
	}
}
