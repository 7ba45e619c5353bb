package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinProfile/internal/domain/models"
	drepo "FinProfile/internal/domain/repository"
	mid "FinProfile/internal/middleware"
	"FinProfile/internal/services/profile"
	pkgkafka "FinProfile/pkg/kafka"
	"FinProfile/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type fakeSettings struct {
	cfg   profile.Config
	scale float64
}

func (f fakeSettings) ProfileFor(string) profile.Config { return f.cfg }
func (f fakeSettings) VolumeScale(string) float64 {
	if f.scale == 0 {
		return 1
	}
	return f.scale
}

func unitSettings() fakeSettings {
	c := profile.DefaultConfig()
	c.TickSize = 1
	c.MinTicks = 1
	c.MinLevels = 1
	return fakeSettings{cfg: c}
}

type memStore struct {
	mu      sync.Mutex
	data    map[string][]models.NakedPOC
	saves   int
	loadErr error
}

func (m *memStore) Load(_ context.Context, symbol string) ([]models.NakedPOC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[symbol], nil
}

func (m *memStore) Save(_ context.Context, symbol string, entries []models.NakedPOC) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]models.NakedPOC)
	}
	m.data[symbol] = entries
	m.saves++
	return nil
}

type capturePublisher struct {
	got    []*models.SignalDescriptor
	err    error
	closed bool
}

func (c *capturePublisher) Publish(_ context.Context, s *models.SignalDescriptor) error {
	c.got = append(c.got, s)
	return c.err
}

func (c *capturePublisher) Close() error {
	c.closed = true
	return nil
}

type barSourceFunc func(ctx context.Context, symbol string, from, to time.Time, size drepo.BarSize) ([]models.Candle, error)

func (f barSourceFunc) FetchBars(ctx context.Context, symbol string, from, to time.Time, size drepo.BarSize) ([]models.Candle, error) {
	return f(ctx, symbol, from, to, size)
}

func testMetrics() drepo.Metrics {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

func trade(symbol string, price, volume float64, ts time.Time) *models.Trade {
	return &models.Trade{Symbol: symbol, Price: price, Volume: volume, Timestamp: ts.UnixMilli()}
}

func TestTradeProcessorBuildsProfile(t *testing.T) {
	p := NewTradeProcessor(unitSettings(), nil, nil, nil, testMetrics(), nil)
	ctx := context.Background()

	for i, px := range []float64{100, 101, 101, 102, 101} {
		require.NoError(t, p.Process(ctx, trade("AAPL", px, 10, day0.Add(time.Duration(i)*time.Minute))))
	}

	snap, err := p.Snapshot("AAPL", true)
	require.NoError(t, err)
	assert.True(t, snap.Ready)
	require.NotNil(t, snap.Levels)
	assert.Equal(t, 101.0, snap.Levels.POC)
	assert.Equal(t, int64(50), snap.Levels.TotalVolume)
	assert.Len(t, snap.Profile, 3)
	assert.Equal(t, []string{"AAPL"}, p.Symbols())

	_, err = p.Snapshot("MSFT", false)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = p.NakedPOCs("MSFT", 10)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestTradeProcessorVolumeScaling(t *testing.T) {
	s := unitSettings()
	s.scale = 100
	p := NewTradeProcessor(s, nil, nil, nil, testMetrics(), nil)

	assert.Equal(t, int64(25), p.toTick(trade("BTC", 1, 0.25, day0)).Volume)
	assert.Equal(t, int64(1), p.toTick(trade("BTC", 1, 0.001, day0)).Volume, "tiny prints count as one unit")
	assert.True(t, p.toTick(trade("BTC", 1, 0, day0)).VolumeMissing)
}

func TestTradeProcessorPersistsNakedOnSessionClose(t *testing.T) {
	store := &memStore{}
	p := NewTradeProcessor(unitSettings(), nil, store, nil, testMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, trade("AAPL", 100, 10, day0.Add(time.Hour))))
	require.NoError(t, p.Process(ctx, trade("AAPL", 100, 10, day0.Add(2*time.Hour))))
	// next session opens far from the prior POC so it stays naked
	require.NoError(t, p.Process(ctx, trade("AAPL", 120, 10, day0.Add(25*time.Hour))))

	require.Equal(t, 1, store.saves)
	require.Len(t, store.data["AAPL"], 1)
	assert.Equal(t, 100.0, store.data["AAPL"][0].Price)

	naked, err := p.NakedPOCs("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, naked, 1)
	assert.Equal(t, "AAPL", naked[0].Symbol)
}

func TestTradeProcessorRestoresAndFlushes(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{data: map[string][]models.NakedPOC{
		"AAPL": {{Price: 95, Strength: 0.3, RecordedAt: now.Add(-time.Hour)}},
	}}
	pub := &capturePublisher{}
	p := NewTradeProcessor(unitSettings(), pub, store, nil, testMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, p.Warm(ctx, []string{"AAPL"}))
	naked, err := p.NakedPOCs("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, naked, 1)
	assert.Equal(t, 95.0, naked[0].Price)

	store.data = nil
	require.NoError(t, p.Close(ctx))
	assert.Len(t, store.data["AAPL"], 1)
	assert.True(t, pub.closed)
}

func TestTradeProcessorToleratesStoreFailure(t *testing.T) {
	store := &memStore{loadErr: errors.New("redis down")}
	p := NewTradeProcessor(unitSettings(), nil, store, nil, testMetrics(), nil)
	require.NoError(t, p.Process(context.Background(), trade("AAPL", 100, 1, day0)))
	naked, err := p.NakedPOCs("AAPL", 0)
	require.NoError(t, err)
	assert.Empty(t, naked)
}

func TestTradeProcessorRejectsInvalidConfig(t *testing.T) {
	s := unitSettings()
	s.cfg.TickSize = 0
	p := NewTradeProcessor(s, nil, nil, nil, testMetrics(), nil)
	err := p.Process(context.Background(), trade("AAPL", 100, 1, day0))
	assert.ErrorIs(t, err, profile.ErrConfigurationInvalid)
}

func TestTradeProcessorCounters(t *testing.T) {
	p := NewTradeProcessor(unitSettings(), nil, nil, nil, testMetrics(), nil)
	ctx := context.Background()
	c := models.HostCounters{DailyPositions: 3, ConsecutiveLosses: 1}
	require.NoError(t, p.Process(ctx, trade("AAPL", 100, 10, day0)))
	require.NoError(t, p.SetCounters(ctx, "AAPL", c))

	inst, ok := p.lookup("AAPL")
	require.True(t, ok)
	assert.Equal(t, c, inst.counters)
}

func TestTradeProcessorCountersUnknownSymbol(t *testing.T) {
	p := NewTradeProcessor(unitSettings(), nil, nil, nil, testMetrics(), nil)

	err := p.SetCounters(context.Background(), "MSFT", models.HostCounters{DailyPositions: 1})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, ok := p.lookup("MSFT")
	assert.False(t, ok, "counters never create an engine")
	assert.Empty(t, p.Symbols())
}

func TestTradeProcessorPublish(t *testing.T) {
	pub := &capturePublisher{}
	p := NewTradeProcessor(unitSettings(), pub, nil, nil, testMetrics(), nil)
	sig := &models.SignalDescriptor{ID: "s1", Symbol: "AAPL", Type: models.SignalPOCRejection}

	require.NoError(t, p.publish(context.Background(), sig))
	assert.Equal(t, []*models.SignalDescriptor{sig}, pub.got)

	pub.err = errors.New("broker down")
	assert.ErrorContains(t, p.publish(context.Background(), sig), "publish signal s1")
}

func TestBootstrapperSeedsEngine(t *testing.T) {
	var gotFrom, gotTo time.Time
	src := barSourceFunc(func(_ context.Context, symbol string, from, to time.Time, size drepo.BarSize) ([]models.Candle, error) {
		assert.Equal(t, "AAPL", symbol)
		assert.Equal(t, drepo.Bar1m, size)
		gotFrom, gotTo = from, to
		return []models.Candle{
			{Bucket: day0.Add(time.Minute), Open: 100, High: 102, Low: 100, Close: 101, Volume: 30},
			{Bucket: day0.Add(2 * time.Minute), Open: 101, High: 101, Low: 101, Close: 101, Volume: 5},
		}, nil
	})
	b := NewBootstrapper(src, 2*time.Hour, drepo.Bar1m, time.Second, nil)
	b.now = func() time.Time { return day0.Add(3 * time.Minute) }

	e, err := profile.NewEngine("AAPL", unitSettings().cfg)
	require.NoError(t, err)
	used, err := b.Seed(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, 2, used)
	assert.Equal(t, 2*time.Hour, gotTo.Sub(gotFrom))

	lv, ok := e.Levels()
	require.True(t, ok)
	assert.Equal(t, int64(35), lv.TotalVolume)
	assert.Equal(t, 101.0, lv.POC)
}

func TestBootstrapperUnavailable(t *testing.T) {
	src := barSourceFunc(func(context.Context, string, time.Time, time.Time, drepo.BarSize) ([]models.Candle, error) {
		return nil, errors.New("connection refused")
	})
	b := NewBootstrapper(src, time.Hour, drepo.Bar1m, time.Second, nil)
	e, err := profile.NewEngine("AAPL", unitSettings().cfg)
	require.NoError(t, err)

	_, err = b.Seed(context.Background(), e)
	assert.True(t, IsUnavailable(err))

	var disabled *Bootstrapper
	used, err := disabled.Seed(context.Background(), e)
	assert.NoError(t, err)
	assert.Zero(t, used)
}

type procFunc func(ctx context.Context, t *models.Trade) error

func (f procFunc) Process(ctx context.Context, t *models.Trade) error { return f(ctx, t) }

func TestKafkaTicksHandler(t *testing.T) {
	var got []*models.Trade
	h := NewKafkaTicksHandler("ticks", procFunc(func(_ context.Context, tr *models.Trade) error {
		got = append(got, tr)
		return nil
	}), testMetrics())
	ctx := context.Background()

	assert.Equal(t, "ticks", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"AAPL","t":1709542800,"c":190.5,"v":3}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"AAPL","t":1709542800500,"c":190.6,"v":1}`)))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1709542800000), got[0].Timestamp, "seconds are promoted to milliseconds")
	assert.Equal(t, int64(1709542800500), got[1].Timestamp)

	assert.ErrorIs(t, h.Handle(ctx, []byte(`{bad`)), pkgkafka.ErrPermanent)
}

func TestKafkaTicksHandlerMapsPipelineErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		permanent bool
	}{
		{"out of order dropped", mid.ErrOutOfOrder, false, false},
		{"invalid is permanent", mid.ErrInvalidTrade, true, true},
		{"buffer full retried", mid.ErrBufferFull, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewKafkaTicksHandler("ticks", procFunc(func(context.Context, *models.Trade) error {
				return tt.err
			}), testMetrics())
			err := h.Handle(context.Background(), []byte(`{"symbol":"AAPL","t":1709542800000,"c":1,"v":1}`))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, pkgkafka.ErrPermanent))
		})
	}
}
