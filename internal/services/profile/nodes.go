package profile

import "FinProfile/internal/domain/models"

// Nodes groups the high and low volume structures of one distribution.
type Nodes struct {
	HVN []models.HVNZone
	LVN []models.LVNGap
}

// ClassifyNodes finds HVN zones and LVN gaps in d. pocVolume scales HVN
// strength. A level never belongs to both an HVN zone and an LVN gap.
func ClassifyNodes(d Distribution, pocVolume int64, cfg Config) Nodes {
	avg := d.AverageOccupied()
	if avg == 0 {
		return Nodes{}
	}
	zones, absorbed := findHVN(d, avg, pocVolume, cfg)
	return Nodes{
		HVN: zones,
		LVN: findLVN(d, avg, absorbed, cfg),
	}
}

func findHVN(d Distribution, avg float64, pocVolume int64, cfg Config) ([]models.HVNZone, []bool) {
	vols := d.Volumes
	n := len(vols)
	threshold := avg * (1 + cfg.HVNRatio)
	expand := threshold * cfg.HVNExpansionRatio
	absorbed := make([]bool, n)

	var zones []models.HVNZone
	for i, v := range vols {
		if absorbed[i] || float64(v) <= threshold {
			continue
		}
		if (i > 0 && vols[i-1] >= v) || (i < n-1 && vols[i+1] >= v) {
			continue
		}

		lo, hi := i, i
		for lo > 0 && !absorbed[lo-1] && float64(vols[lo-1]) > expand {
			lo--
		}
		for hi < n-1 && !absorbed[hi+1] && float64(vols[hi+1]) > expand {
			hi++
		}

		var total int64
		for j := lo; j <= hi; j++ {
			absorbed[j] = true
			total += vols[j]
		}
		zones = append(zones, models.HVNZone{
			Low:          d.PriceAt(lo),
			High:         d.PriceAt(hi),
			PeakPrice:    d.PriceAt(i),
			PeakVolume:   v,
			TotalVolume:  total,
			Significance: zoneSignificance(total, d.Total, hi-lo+1),
			Strength:     zoneStrength(v, pocVolume),
		})
	}
	return zones, absorbed
}

func zoneSignificance(zoneVolume, sessionVolume int64, span int) models.Significance {
	share := float64(zoneVolume) / float64(sessionVolume)
	switch {
	case share > 0.20 && span < 10:
		return models.SignificanceMajor
	case share > 0.15:
		return models.SignificanceSignificant
	case share > 0.10:
		return models.SignificanceModerate
	default:
		return models.SignificanceMinor
	}
}

func zoneStrength(peak, pocVolume int64) models.NodeStrength {
	if pocVolume <= 0 {
		return models.StrengthWeak
	}
	ratio := float64(peak) / float64(pocVolume)
	switch {
	case ratio >= 0.90:
		return models.StrengthVeryStrong
	case ratio >= 0.70:
		return models.StrengthStrong
	case ratio >= 0.50:
		return models.StrengthModerate
	default:
		return models.StrengthWeak
	}
}

// findLVN scans runs of thin levels. A run at the edge of the profile is a
// one-sided gap and is typed by the volume on its single neighbour side.
func findLVN(d Distribution, avg float64, absorbed []bool, cfg Config) []models.LVNGap {
	vols := d.Volumes
	n := len(vols)
	threshold := avg * cfg.LVNRatio

	var gaps []models.LVNGap
	for i := 0; i < n; {
		if absorbed[i] || float64(vols[i]) >= threshold {
			i++
			continue
		}
		start := i
		for i < n && !absorbed[i] && float64(vols[i]) < threshold {
			i++
		}
		end := i - 1
		if end-start+1 < cfg.LVNMinRun {
			continue
		}
		gaps = append(gaps, buildGap(d, start, end, avg, cfg.LVNLookback))
	}
	return gaps
}

func buildGap(d Distribution, start, end int, avg float64, lookback int) models.LVNGap {
	vols := d.Volumes
	width := end - start + 1

	var sum int64
	minVol := vols[start]
	for j := start; j <= end; j++ {
		sum += vols[j]
		minVol = min(minVol, vols[j])
	}
	gapAvg := float64(sum) / float64(width)

	var pre, post int64
	for j := max(0, start-lookback); j < start; j++ {
		pre = max(pre, vols[j])
	}
	for j := end + 1; j < min(len(vols), end+1+lookback); j++ {
		post = max(post, vols[j])
	}

	return models.LVNGap{
		Low:       d.PriceAt(start),
		High:      d.PriceAt(end),
		Levels:    width,
		AvgVolume: gapAvg,
		MinVolume: minVol,
		Strength:  gapStrength(gapAvg/avg, width),
		Type:      gapType(float64(pre), float64(post), gapAvg),
	}
}

func gapStrength(ratio float64, width int) models.GapStrength {
	switch {
	case ratio < 0.10 && width > 10:
		return models.GapExtreme
	case ratio < 0.20 && width > 5:
		return models.GapStrong
	case ratio < 0.30:
		return models.GapModerate
	default:
		return models.GapWeak
	}
}

func gapType(pre, post, gapAvg float64) models.GapType {
	switch {
	case pre > 3*gapAvg && post > 3*gapAvg:
		return models.GapSeparation
	case pre > 2*post:
		return models.GapRejectionUp
	case post > 2*pre:
		return models.GapRejectionDown
	default:
		return models.GapNeutral
	}
}
