package profile

import (
	"math"
	"sort"
	"time"

	"FinProfile/internal/domain/models"
)

// NakedRegistry keeps prior session POCs that price has not revisited.
// Entries survive session resets and are the only engine state worth
// persisting across restarts.
type NakedRegistry struct {
	threshold float64
	maxAge    time.Duration
	halfTick  float64
	entries   []models.NakedPOC
}

// NewNakedRegistry creates an empty registry.
func NewNakedRegistry(cfg Config) *NakedRegistry {
	return &NakedRegistry{
		threshold: cfg.NakedStrengthThreshold,
		maxAge:    cfg.NakedMaxAge,
		halfTick:  cfg.TickSize / 2,
	}
}

// Record registers a closing POC. It is skipped when its volume share is not
// above the threshold or an entry already sits within half a tick.
func (r *NakedRegistry) Record(price, strength float64, at time.Time) bool {
	if strength <= r.threshold {
		return false
	}
	for _, e := range r.entries {
		if math.Abs(e.Price-price) < r.halfTick {
			return false
		}
	}
	r.entries = append(r.entries, models.NakedPOC{
		Price:      price,
		Strength:   strength,
		RecordedAt: at,
	})
	return true
}

// Test marks every untested entry inside [low, high] as tested.
func (r *NakedRegistry) Test(low, high float64) []models.NakedPOC {
	var hit []models.NakedPOC
	for i := range r.entries {
		e := &r.entries[i]
		if !e.Tested && e.Price >= low-r.halfTick/2 && e.Price <= high+r.halfTick/2 {
			e.Tested = true
			hit = append(hit, *e)
		}
	}
	return hit
}

// Prune removes tested and expired entries and returns them.
func (r *NakedRegistry) Prune(now time.Time) []models.NakedPOC {
	var removed []models.NakedPOC
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Tested || now.Sub(e.RecordedAt) > r.maxAge {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed
}

// Untested returns live entries ordered by magnet strength, strongest first.
func (r *NakedRegistry) Untested(now time.Time) []models.NakedPOC {
	out := make([]models.NakedPOC, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Tested {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.Magnet(out[i], now) > r.Magnet(out[j], now)
	})
	return out
}

// Magnet blends recency, volume strength and the session-strength class into
// a 0..1 attraction score.
func (r *NakedRegistry) Magnet(e models.NakedPOC, now time.Time) float64 {
	recency := 1 - float64(now.Sub(e.RecordedAt))/float64(r.maxAge)
	recency = math.Max(0, math.Min(1, recency))
	volume := math.Min(e.Strength/0.35, 1)

	class := 0.3
	switch {
	case e.Strength >= 0.35:
		class = 1.0
	case e.Strength >= 0.25:
		class = 0.6
	}
	return 0.4*recency + 0.4*volume + 0.2*class
}

// Len is the number of tracked entries, tested or not.
func (r *NakedRegistry) Len() int { return len(r.entries) }

// Snapshot copies the tracked entries.
func (r *NakedRegistry) Snapshot() []models.NakedPOC {
	out := make([]models.NakedPOC, len(r.entries))
	copy(out, r.entries)
	return out
}

// Restore replaces the registry content with persisted entries. Tested
// entries and duplicates within half a tick are dropped.
func (r *NakedRegistry) Restore(entries []models.NakedPOC) {
	sorted := make([]models.NakedPOC, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	r.entries = r.entries[:0]
	for _, e := range sorted {
		if e.Tested {
			continue
		}
		dup := false
		for _, k := range r.entries {
			if math.Abs(k.Price-e.Price) < r.halfTick {
				dup = true
				break
			}
		}
		if !dup {
			r.entries = append(r.entries, e)
		}
	}
}
