package profile

import (
	"testing"
	"time"

	"FinProfile/internal/domain/models"

	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// unitConfig uses one-point ticks and no warm-up so scenarios stay small.
func unitConfig() Config {
	c := DefaultConfig()
	c.TickSize = 1
	c.MinTicks = 1
	c.MinLevels = 1
	return c
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine("TEST", cfg, opts...)
	require.NoError(t, err)
	return e
}

func ledgerOf(tickSize float64, levels map[float64]int64) *Ledger {
	l := NewLedger(tickSize, 0)
	for p, v := range levels {
		_ = l.Record(p, v, false)
	}
	return l
}

func tickAt(price float64, volume int64, ts time.Time) models.Tick {
	return models.Tick{Price: price, Volume: volume, Time: ts}
}
