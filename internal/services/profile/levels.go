package profile

import "FinProfile/internal/domain/models"

// ReferenceLevels derives the point of control and value area from d.
// ok is false for an empty distribution.
func ReferenceLevels(d Distribution, target float64) (models.ReferenceLevels, bool) {
	if len(d.Volumes) == 0 {
		return models.ReferenceLevels{}, false
	}
	poc := pocIndex(d)
	val, vah, acc := expandValueArea(d.Volumes, poc, float64(d.Total)*target)

	fraction := 1.0
	if d.Total > 0 {
		fraction = float64(acc) / float64(d.Total)
	}
	return models.ReferenceLevels{
		POC:               d.PriceAt(poc),
		VAH:               d.PriceAt(vah),
		VAL:               d.PriceAt(val),
		POCVolume:         d.Volumes[poc],
		ValueAreaVolume:   acc,
		ValueAreaFraction: fraction,
		TotalVolume:       d.Total,
	}, true
}

// pocIndex returns the max-volume position. Ties go to the candidate nearest
// the volume-weighted median, then to the lower price.
func pocIndex(d Distribution) int {
	var peak int64 = -1
	for _, v := range d.Volumes {
		peak = max(peak, v)
	}

	median := 0
	var cum int64
	for i, v := range d.Volumes {
		cum += v
		if cum*2 >= d.Total {
			median = i
			break
		}
	}

	best, bestDist := -1, 0
	for i, v := range d.Volumes {
		if v != peak {
			continue
		}
		dist := i - median
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// expandValueArea grows [val, vah] from poc one level at a time toward the
// heavier neighbour. An exact tie takes the upper side.
func expandValueArea(vols []int64, poc int, target float64) (val, vah int, acc int64) {
	val, vah, acc = poc, poc, vols[poc]
	last := len(vols) - 1
	for float64(acc) < target && (val > 0 || vah < last) {
		var up, down int64 = -1, -1
		if vah < last {
			up = vols[vah+1]
		}
		if val > 0 {
			down = vols[val-1]
		}
		if down > up {
			val--
			acc += down
			continue
		}
		vah++
		acc += up
	}
	return val, vah, acc
}
