package usecase

import (
	"context"
	"strings"
	"testing"

	"FinProfile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCSV(t *testing.T) {
	in := strings.Join([]string{
		"timestamp,price,volume",
		"2024-03-04T09:30:00Z,100.5,10",
		"# pause",
		"1709544601,100.75,",
		"1709544602000,101,4",
		"garbage,1,1",
		"1709544603,-1,1",
	}, "\n")

	var got []*models.Trade
	proc := procFunc(func(_ context.Context, tr *models.Trade) error {
		got = append(got, tr)
		return nil
	})
	st, err := Replay(context.Background(), strings.NewReader(in), "SPY", proc)
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Rows: 6, Fed: 3, Skipped: 2}, st)

	require.Len(t, got, 3)
	assert.Equal(t, "SPY", got[0].Symbol)
	assert.Equal(t, int64(1709544600000), got[0].Timestamp)
	assert.Zero(t, got[1].Volume, "empty volume is left for the engine placeholder")
	assert.Equal(t, int64(1709544602000), got[2].Timestamp)
}

func TestReplayThroughProcessor(t *testing.T) {
	p := NewTradeProcessor(unitSettings(), nil, nil, nil, testMetrics(), nil)
	in := "1709542800,100,5\n1709542801,101,5\n1709542802,101,5\n"

	st, err := Replay(context.Background(), strings.NewReader(in), "SPY", p)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Fed)

	snap, err := p.Snapshot("SPY", false)
	require.NoError(t, err)
	require.NotNil(t, snap.Levels)
	assert.Equal(t, 101.0, snap.Levels.POC)
}
