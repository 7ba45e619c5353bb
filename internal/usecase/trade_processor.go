package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"FinProfile/internal/domain/models"
	drepo "FinProfile/internal/domain/repository"
	"FinProfile/internal/services/profile"
	"FinProfile/pkg/logger"
)

// ErrUnknownSymbol is returned by queries for instruments without an engine.
var ErrUnknownSymbol = errors.New("unknown symbol")

// EngineSettings resolves per-instrument engine configuration.
type EngineSettings interface {
	ProfileFor(symbol string) profile.Config
	VolumeScale(symbol string) float64
}

// instrument pairs an engine with the host counters that gate its signals.
// mu serializes every engine call.
type instrument struct {
	mu       sync.Mutex
	engine   *profile.Engine
	counters models.HostCounters
}

// TradeProcessor routes trades to one profile engine per symbol, publishes
// the signals they emit and persists naked POCs when sessions close.
type TradeProcessor struct {
	settings EngineSettings
	pub      drepo.SignalPublisher
	store    drepo.NakedStore
	boot     *Bootstrapper
	metrics  drepo.Metrics
	log      *logger.Logger
	timeout  time.Duration
	newID    func() string

	mu          sync.RWMutex
	instruments map[string]*instrument
}

type ProcessorOption func(*TradeProcessor)

// WithStoreTimeout bounds naked store and publish calls.
func WithStoreTimeout(d time.Duration) ProcessorOption {
	return func(p *TradeProcessor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithSignalIDs overrides signal id generation.
func WithSignalIDs(fn func() string) ProcessorOption {
	return func(p *TradeProcessor) { p.newID = fn }
}

// NewTradeProcessor creates a new TradeProcessor instance. store and boot
// may be nil.
func NewTradeProcessor(
	settings EngineSettings,
	pub drepo.SignalPublisher,
	store drepo.NakedStore,
	boot *Bootstrapper,
	metrics drepo.Metrics,
	l *logger.Logger,
	opts ...ProcessorOption,
) *TradeProcessor {
	if l == nil {
		l = logger.Nop()
	}
	p := &TradeProcessor{
		settings:    settings,
		pub:         pub,
		store:       store,
		boot:        boot,
		metrics:     metrics,
		log:         l.With(logger.String("component", "processor")),
		timeout:     5 * time.Second,
		instruments: make(map[string]*instrument),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process feeds a single trade to its symbol's engine and publishes any
// signal. Only engine construction and publish failures are returned; tick
// rejections are counted and logged.
func (p *TradeProcessor) Process(ctx context.Context, t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade is nil")
	}
	inst, err := p.instrument(ctx, t.Symbol)
	if err != nil {
		p.metrics.RecordError("engine_init")
		return fmt.Errorf("process trade: %w", err)
	}

	tick := p.toTick(t)
	start := time.Now()
	inst.mu.Lock()
	res := inst.engine.Process(tick)
	var levels models.ReferenceLevels
	if res.Ready {
		levels, _ = inst.engine.Levels()
	}
	inst.mu.Unlock()
	p.metrics.RecordLatency("engine_process", time.Since(start).Seconds())
	p.metrics.RecordLastPrice(t.Symbol, t.Price)

	switch {
	case res.Debug.Reason == profile.ErrInvalidTick.Error(), res.Debug.Reason == profile.ErrOutOfOrder.Error():
		p.metrics.RecordError("engine_" + res.Debug.Reason)
		return nil
	case res.Ready:
		p.metrics.RecordProfile(t.Symbol, levels, res.Debug.NakedPOCCount)
	}
	if res.Debug.Reason == profile.ReasonBlockedDaily || res.Debug.Reason == profile.ReasonBlockedLosses {
		p.log.Info("signal blocked",
			logger.String("symbol", t.Symbol),
			logger.String("reason", res.Debug.Reason))
	}
	if res.Signal == nil {
		return nil
	}
	return p.publish(ctx, res.Signal)
}

func (p *TradeProcessor) publish(ctx context.Context, s *models.SignalDescriptor) error {
	p.metrics.RecordSignal(s.Symbol, string(s.Type))
	p.log.Info("signal emitted",
		logger.String("id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.String("type", string(s.Type)),
		logger.String("direction", string(s.Direction)),
		logger.Float64("entry", s.EntryPrice),
		logger.Float64("confidence", s.Confidence))
	if p.pub == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.pub.Publish(ctx, s); err != nil {
		p.metrics.RecordError("signal_publish")
		return fmt.Errorf("publish signal %s: %w", s.ID, err)
	}
	p.metrics.RecordMessageSent("signals", s.Symbol)
	return nil
}

// toTick scales fractional trade volume into whole engine units. A trade
// without volume is flagged so the engine substitutes its placeholder.
func (p *TradeProcessor) toTick(t *models.Trade) models.Tick {
	tick := models.Tick{Price: t.Price, Time: t.Time().UTC()}
	if t.Volume <= 0 {
		tick.VolumeMissing = true
		return tick
	}
	v := int64(math.Round(t.Volume * p.settings.VolumeScale(t.Symbol)))
	if v < 1 {
		v = 1
	}
	tick.Volume = v
	return tick
}

// Warm creates engines for symbols up front so bootstrap and registry
// restore run before live ticks arrive.
func (p *TradeProcessor) Warm(ctx context.Context, symbols []string) error {
	var errs []error
	for _, s := range symbols {
		if _, err := p.instrument(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *TradeProcessor) instrument(ctx context.Context, symbol string) (*instrument, error) {
	p.mu.RLock()
	inst, ok := p.instruments[symbol]
	p.mu.RUnlock()
	if ok {
		return inst, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if inst, ok := p.instruments[symbol]; ok {
		return inst, nil
	}
	inst = &instrument{}
	opts := []profile.Option{
		profile.WithLogger(p.log),
		profile.WithHostCounters(func() models.HostCounters { return inst.counters }),
		profile.WithSessionCloseHook(p.persist),
	}
	if p.newID != nil {
		opts = append(opts, profile.WithIDGenerator(p.newID))
	}
	e, err := profile.NewEngine(symbol, p.settings.ProfileFor(symbol), opts...)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", symbol, err)
	}
	inst.engine = e
	p.restore(ctx, e)
	if _, err := p.boot.Seed(ctx, e); err != nil {
		p.metrics.RecordError("bootstrap")
		p.log.Warn("bootstrap skipped",
			logger.String("symbol", symbol),
			logger.Bool("unavailable", IsUnavailable(err)),
			logger.Error(err))
	}
	p.instruments[symbol] = inst
	p.log.Info("engine started", logger.String("symbol", symbol))
	return inst, nil
}

func (p *TradeProcessor) restore(ctx context.Context, e *profile.Engine) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	entries, err := p.store.Load(ctx, e.Symbol())
	if err != nil {
		p.metrics.RecordError("naked_load")
		p.log.Warn("naked registry load failed", logger.String("symbol", e.Symbol()), logger.Error(err))
		return
	}
	e.RestoreNaked(entries)
	if len(entries) > 0 {
		p.log.Info("naked registry restored",
			logger.String("symbol", e.Symbol()),
			logger.Int("entries", len(entries)))
	}
}

// persist runs on the engine goroutine when a session closes.
func (p *TradeProcessor) persist(s models.SessionSummary) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Save(ctx, s.Symbol, s.NakedPOCs); err != nil {
		p.metrics.RecordError("naked_save")
		p.log.Error("naked registry save failed", logger.String("symbol", s.Symbol), logger.Error(err))
	}
}

// SetCounters replaces the host counters consulted by symbol's signal gate.
// Symbols without an engine yield ErrUnknownSymbol.
func (p *TradeProcessor) SetCounters(_ context.Context, symbol string, c models.HostCounters) error {
	inst, ok := p.lookup(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	inst.mu.Lock()
	inst.counters = c
	inst.mu.Unlock()
	return nil
}

// Snapshot returns the current state of symbol's engine.
func (p *TradeProcessor) Snapshot(symbol string, withProfile bool) (models.ProfileSnapshot, error) {
	inst, ok := p.lookup(symbol)
	if !ok {
		return models.ProfileSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.engine.Snapshot(withProfile), nil
}

// NakedPOCs returns up to limit untested naked POCs, strongest magnet first.
func (p *TradeProcessor) NakedPOCs(symbol string, limit int) ([]models.NakedPOC, error) {
	inst, ok := p.lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	inst.mu.Lock()
	out := inst.engine.NakedPOCs()
	inst.mu.Unlock()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Symbols lists the instruments with a running engine.
func (p *TradeProcessor) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.instruments))
	for s := range p.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (p *TradeProcessor) lookup(symbol string) (*instrument, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.instruments[symbol]
	return inst, ok
}

// Flush writes every registry to the naked store.
func (p *TradeProcessor) Flush(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	var errs []error
	for _, s := range p.Symbols() {
		inst, _ := p.lookup(s)
		inst.mu.Lock()
		entries := inst.engine.NakedPOCs()
		inst.mu.Unlock()
		if err := p.store.Save(ctx, s, entries); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes registries and closes the publisher.
func (p *TradeProcessor) Close(ctx context.Context) error {
	err := p.Flush(ctx)
	if p.pub != nil {
		err = errors.Join(err, p.pub.Close())
	}
	return err
}
