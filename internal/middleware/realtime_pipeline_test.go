package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinProfile/internal/domain/models"
	"FinProfile/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu   sync.Mutex
	seen map[string][]int64
	fail bool
}

func (r *recordingProc) Process(_ context.Context, t *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string][]int64)
	}
	r.seen[t.Symbol] = append(r.seen[t.Symbol], t.Timestamp)
	if r.fail {
		return errors.New("downstream")
	}
	return nil
}

func newTestPipeline(proc Proc, opts ...PipelineOption) *RealtimePipeline {
	return NewRealtimePipeline(proc, metrics.NewWithRegistry(prometheus.NewRegistry()), opts...)
}

func TestPipelineKeepsPerSymbolOrder(t *testing.T) {
	proc := &recordingProc{}
	p := newTestPipeline(proc, WithWorkers(3), WithBufferSize(100))
	ctx := context.Background()
	p.Start(ctx)

	for i := int64(1); i <= 20; i++ {
		require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "AAPL", Timestamp: i, Price: 100, Volume: 1}))
		require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "MSFT", Timestamp: i, Price: 300, Volume: 1}))
	}
	require.NoError(t, p.Stop(ctx))

	for _, sym := range []string{"AAPL", "MSFT"} {
		got := proc.seen[sym]
		require.Len(t, got, 20)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1], got[i])
		}
	}
}

func TestPipelineRejects(t *testing.T) {
	p := newTestPipeline(&recordingProc{}, WithWorkers(1))
	ctx := context.Background()

	tests := []struct {
		name  string
		trade *models.Trade
	}{
		{"nil", nil},
		{"no symbol", &models.Trade{Timestamp: 1, Price: 1}},
		{"no timestamp", &models.Trade{Symbol: "A", Price: 1}},
		{"zero price", &models.Trade{Symbol: "A", Timestamp: 1}},
		{"negative volume", &models.Trade{Symbol: "A", Timestamp: 1, Price: 1, Volume: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, p.Process(ctx, tt.trade), ErrInvalidTrade)
		})
	}
}

func TestPipelineDropsRegressions(t *testing.T) {
	p := newTestPipeline(&recordingProc{}, WithWorkers(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 10, Price: 1}))
	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 10, Price: 1}))
	assert.ErrorIs(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 9, Price: 1}), ErrOutOfOrder)
	assert.NoError(t, p.Process(ctx, &models.Trade{Symbol: "B", Timestamp: 9, Price: 1}))
}

func TestPipelineBufferFull(t *testing.T) {
	p := newTestPipeline(&recordingProc{}, WithWorkers(1), WithBufferSize(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 1, Price: 1}))
	assert.ErrorIs(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 2, Price: 1}), ErrBufferFull)
	p.Start(ctx)
	require.NoError(t, p.Stop(ctx))
	assert.ErrorIs(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 3, Price: 1}), ErrPipelineClosed)
}

func TestPipelineContinuesAfterProcessorError(t *testing.T) {
	proc := &recordingProc{fail: true}
	p := newTestPipeline(proc, WithWorkers(1))
	ctx := context.Background()
	p.Start(ctx)

	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 1, Price: 1}))
	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 2, Price: 1}))
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, []int64{1, 2}, proc.seen["A"], "failed trades are not re-queued")
}

type panickingProc struct{ recordingProc }

func (p *panickingProc) Process(ctx context.Context, t *models.Trade) error {
	_ = p.recordingProc.Process(ctx, t)
	if t.Timestamp == 1 {
		panic("makeslice: len out of range")
	}
	return nil
}

func TestPipelineSurvivesProcessorPanic(t *testing.T) {
	proc := &panickingProc{}
	p := newTestPipeline(proc, WithWorkers(1))
	ctx := context.Background()
	p.Start(ctx)

	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 1, Price: 1}))
	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "A", Timestamp: 2, Price: 1}))
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, []int64{1, 2}, proc.seen["A"])
}

func TestPipelineTransform(t *testing.T) {
	proc := &recordingProc{}
	p := newTestPipeline(proc, WithWorkers(1), WithTransform(func(t *models.Trade) *models.Trade {
		c := *t
		c.Symbol = "BINANCE:" + c.Symbol
		return &c
	}))
	ctx := context.Background()
	p.Start(ctx)
	require.NoError(t, p.Process(ctx, &models.Trade{Symbol: "BTC", Timestamp: 5, Price: 1}))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.Equal(t, []int64{5}, proc.seen["BINANCE:BTC"])
}
