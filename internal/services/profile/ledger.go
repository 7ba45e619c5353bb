package profile

import (
	"fmt"
	"math"
	"time"

	"FinProfile/internal/domain/models"
)

// Ledger accumulates traded volume per price level for the current session.
// Levels are keyed by tick index so that float prices never drift apart.
type Ledger struct {
	tickSize  float64
	scale     float64
	maxLevels int

	levels map[int64]int64
	total  int64

	lowIdx, highIdx int64
	ib              ibState
}

type ibState struct {
	set             bool
	lowIdx, highIdx int64
	volume          int64
}

// maxIndex keeps price/tickSize exact when converted to an int64.
const maxIndex = 1 << 53

// NewLedger creates an empty ledger for the given tick size. The session
// range may span at most maxLevels levels; zero or less disables the cap.
func NewLedger(tickSize float64, maxLevels int) *Ledger {
	return &Ledger{
		tickSize:  tickSize,
		scale:     math.Pow(10, float64(tickDecimals(tickSize))),
		maxLevels: maxLevels,
		levels:    make(map[int64]int64),
	}
}

// tickDecimals returns the number of decimals needed to print tickSize.
func tickDecimals(tickSize float64) int {
	for d := 0; d < 10; d++ {
		p := math.Pow(10, float64(d))
		if math.Abs(tickSize*p-math.Round(tickSize*p)) < 1e-9 {
			return d
		}
	}
	return 10
}

// Index maps a price to its level index.
func (l *Ledger) Index(price float64) int64 {
	return int64(math.Round(price / l.tickSize))
}

// Price maps a level index back to a rounded price.
func (l *Ledger) Price(idx int64) float64 {
	return math.Round(float64(idx)*l.tickSize*l.scale) / l.scale
}

// Record adds volume at price. inIB extends the initial balance.
func (l *Ledger) Record(price float64, volume int64, inIB bool) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidTick, price)
	}
	if volume < 0 {
		return fmt.Errorf("%w: volume %d", ErrInvalidTick, volume)
	}
	if err := l.Admit(price, price, false); err != nil {
		return err
	}
	idx := l.Index(price)
	if len(l.levels) == 0 {
		l.lowIdx, l.highIdx = idx, idx
	} else {
		l.lowIdx = min(l.lowIdx, idx)
		l.highIdx = max(l.highIdx, idx)
	}
	l.levels[idx] += volume
	l.total += volume

	if inIB {
		if !l.ib.set {
			l.ib = ibState{set: true, lowIdx: idx, highIdx: idx}
		}
		l.ib.lowIdx = min(l.ib.lowIdx, idx)
		l.ib.highIdx = max(l.ib.highIdx, idx)
		l.ib.volume += volume
	}
	return nil
}

// Admit checks that recording prices between low and high keeps the session
// range within the level cap. With fresh set the current levels are ignored,
// as they would be once a new session starts. Nothing is changed.
func (l *Ledger) Admit(low, high float64, fresh bool) error {
	if math.Abs(low/l.tickSize) > maxIndex || math.Abs(high/l.tickSize) > maxIndex {
		return fmt.Errorf("%w: price outside addressable range", ErrInvalidTick)
	}
	lo, hi := l.Index(low), l.Index(high)
	if !fresh && len(l.levels) > 0 {
		lo = min(lo, l.lowIdx)
		hi = max(hi, l.highIdx)
	}
	if l.maxLevels > 0 && hi-lo+1 > int64(l.maxLevels) {
		return fmt.Errorf("%w: range of %d levels exceeds %d", ErrInvalidTick, hi-lo+1, l.maxLevels)
	}
	return nil
}

// Reset clears every level and the initial balance.
func (l *Ledger) Reset() {
	l.levels = make(map[int64]int64)
	l.total = 0
	l.lowIdx, l.highIdx = 0, 0
	l.ib = ibState{}
}

// Total is the sum of volume across every level.
func (l *Ledger) Total() int64 { return l.total }

// Levels is the number of distinct prices seen this session.
func (l *Ledger) Levels() int { return len(l.levels) }

// VolumeAt returns the volume recorded at price.
func (l *Ledger) VolumeAt(price float64) int64 { return l.levels[l.Index(price)] }

// Range returns the session low and high prices.
func (l *Ledger) Range() (low, high float64, ok bool) {
	if len(l.levels) == 0 {
		return 0, 0, false
	}
	return l.Price(l.lowIdx), l.Price(l.highIdx), true
}

// InitialBalance returns the range and volume traded inside the IB window.
func (l *Ledger) InitialBalance() models.InitialBalance {
	if !l.ib.set {
		return models.InitialBalance{}
	}
	return models.InitialBalance{
		High:   l.Price(l.ib.highIdx),
		Low:    l.Price(l.ib.lowIdx),
		Volume: l.ib.volume,
		Set:    true,
	}
}

// Distribution returns a dense view of the profile from the session low to
// the session high. Untraded levels inside the range hold zero.
func (l *Ledger) Distribution() Distribution {
	d := Distribution{ledger: l, Total: l.total}
	if len(l.levels) == 0 {
		return d
	}
	d.Base = l.lowIdx
	d.Volumes = make([]int64, l.highIdx-l.lowIdx+1)
	for idx, v := range l.levels {
		d.Volumes[idx-l.lowIdx] = v
		if v > 0 {
			d.Occupied++
		}
	}
	return d
}

// Snapshot lists every traded level in ascending price order.
func (l *Ledger) Snapshot() []models.PriceLevel {
	d := l.Distribution()
	out := make([]models.PriceLevel, 0, len(l.levels))
	for i, v := range d.Volumes {
		if _, ok := l.levels[d.Base+int64(i)]; ok {
			out = append(out, models.PriceLevel{Price: d.PriceAt(i), Volume: v})
		}
	}
	return out
}

// Distribution is a dense, index-addressed copy of a ledger.
type Distribution struct {
	ledger *Ledger

	Base     int64
	Volumes  []int64
	Total    int64
	Occupied int
}

// PriceAt converts a position in Volumes to a price.
func (d Distribution) PriceAt(i int) float64 { return d.ledger.Price(d.Base + int64(i)) }

// PosOf converts a price to a position in Volumes. It may fall outside.
func (d Distribution) PosOf(price float64) int { return int(d.ledger.Index(price) - d.Base) }

// Ticks converts a price distance to a number of ticks.
func (d Distribution) Ticks(distance float64) float64 { return distance / d.ledger.tickSize }

// AverageOccupied is the mean volume across levels that traded.
func (d Distribution) AverageOccupied() float64 {
	if d.Occupied == 0 {
		return 0
	}
	return float64(d.Total) / float64(d.Occupied)
}

// ibWindowContains reports whether ts falls in [start, start+window).
func ibWindowContains(start time.Time, window time.Duration, ts time.Time) bool {
	return !ts.Before(start) && ts.Before(start.Add(window))
}
