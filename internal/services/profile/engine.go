package profile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"FinProfile/internal/domain/models"
	"FinProfile/pkg/logger"

	"github.com/google/uuid"
)

// Engine is the market profile state machine for a single instrument.
// It is not safe for concurrent use; callers serialize ticks per engine.
type Engine struct {
	symbol string
	cfg    Config
	loc    *time.Location
	offset time.Duration

	ledger *Ledger
	naked  *NakedRegistry
	scorer scorer

	log      *logger.Logger
	counters func() models.HostCounters
	onClose  func(models.SessionSummary)
	newID    func() string

	sess       session
	hasSession bool
	lastTick   time.Time
	hasLast    bool
	hasPrev    bool
	lastPrice  float64
	prevPrice  float64
	tickCount  int

	ready   bool
	levels  models.ReferenceLevels
	nodes   Nodes
	dayType models.DayType
	phase   models.SessionPhase
	scores  []models.SignalScore
}

type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithHostCounters supplies the read-only risk counters used to gate signals.
func WithHostCounters(fn func() models.HostCounters) Option {
	return func(e *Engine) { e.counters = fn }
}

// WithSessionCloseHook is called synchronously when a session rolls over.
func WithSessionCloseHook(fn func(models.SessionSummary)) Option {
	return func(e *Engine) { e.onClose = fn }
}

// WithIDGenerator overrides signal id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine validates cfg and builds an idle engine for symbol.
func NewEngine(symbol string, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	offset, err := cfg.startOffset()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}

	e := &Engine{
		symbol:   symbol,
		cfg:      cfg,
		loc:      loc,
		offset:   offset,
		ledger:   NewLedger(cfg.TickSize, cfg.MaxLevels),
		naked:    NewNakedRegistry(cfg),
		scorer:   newScorer(cfg),
		log:      logger.Nop(),
		counters: func() models.HostCounters { return models.HostCounters{} },
		newID:    func() string { return uuid.NewString() },
		dayType:  models.DayUnknown,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sess = session{length: cfg.SessionLength, ib: cfg.IBWindow, late: cfg.LateWindow}
	return e, nil
}

// Symbol returns the instrument this engine tracks.
func (e *Engine) Symbol() string { return e.symbol }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Process feeds one tick and returns the recomputed context. It never
// panics or returns an error; rejections are reported in Debug.Reason.
func (e *Engine) Process(t models.Tick) models.TickResult {
	volume := t.Volume
	if t.VolumeMissing {
		volume = e.cfg.DefaultVolume
	}
	if err := validateTick(t.Price, volume, t.Time); err != nil {
		e.log.Debug("tick rejected", logger.String("symbol", e.symbol), logger.Error(err))
		return e.reject(ErrInvalidTick)
	}
	if e.hasLast && t.Time.Before(e.lastTick) {
		e.log.Debug("tick out of order",
			logger.String("symbol", e.symbol),
			logger.Time("tick", t.Time),
			logger.Time("last", e.lastTick),
		)
		return e.reject(ErrOutOfOrder)
	}
	if err := e.ledger.Admit(t.Price, t.Price, e.rolls(t.Time)); err != nil {
		e.log.Debug("tick rejected", logger.String("symbol", e.symbol), logger.Error(err))
		return e.reject(ErrInvalidTick)
	}

	e.roll(t.Time)
	if err := e.ledger.Record(t.Price, volume, e.sess.inIB(t.Time)); err != nil {
		return e.reject(ErrInvalidTick)
	}
	// Score against the naked levels as they stood before this tick tests them.
	e.naked.Prune(t.Time)
	naked := e.naked.Untested(t.Time)
	e.advance(t.Price, t.Time, 1)

	var res models.TickResult
	if e.warm() {
		res = e.evaluate(t, volume, naked)
	} else {
		e.ready = false
		e.phase = e.sess.phase(t.Time)
		res = models.TickResult{
			Environment: models.Environment{DayType: models.DayUnknown, SessionPhase: e.phase},
			Debug:       models.Debug{Reason: ErrNotReady.Error()},
		}
	}
	e.testNaked()
	res.Debug.NakedPOCCount = e.naked.Len()
	return res
}

// Seed pre-populates the current session from historical bars without
// scoring. Each bar's volume is spread evenly across the levels it spans,
// with the remainder placed at the close. It returns the number of bars used.
func (e *Engine) Seed(bars []models.Candle) (int, error) {
	sorted := make([]models.Candle, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bucket.Before(sorted[j].Bucket) })

	used := 0
	for _, b := range sorted {
		if err := validateBar(b); err != nil {
			e.log.Debug("seed bar skipped", logger.String("symbol", e.symbol), logger.Error(err))
			continue
		}
		if e.hasLast && b.Bucket.Before(e.lastTick) {
			continue
		}
		if err := e.ledger.Admit(b.Low, b.High, e.rolls(b.Bucket)); err != nil {
			e.log.Debug("seed bar skipped", logger.String("symbol", e.symbol), logger.Error(err))
			continue
		}
		e.roll(b.Bucket)
		levels := e.spread(b)
		e.advance(b.Close, b.Bucket, levels)
		e.testNaked()
		used++
	}
	if len(bars) > 0 && used == 0 {
		return 0, fmt.Errorf("%w: none of %d bars usable", ErrBootstrapUnavailable, len(bars))
	}
	e.naked.Prune(e.lastTick)
	return used, nil
}

func (e *Engine) spread(b models.Candle) int {
	lo, hi := e.ledger.Index(b.Low), e.ledger.Index(b.High)
	closeIdx := min(max(e.ledger.Index(b.Close), lo), hi)
	n := hi - lo + 1
	total := int64(math.Round(b.Volume))
	per, rem := total/n, total%n

	inIB := e.sess.inIB(b.Bucket)
	for idx := lo; idx <= hi; idx++ {
		v := per
		if idx == closeIdx {
			v += rem
		}
		_ = e.ledger.Record(e.ledger.Price(idx), v, inIB)
	}
	return int(n)
}

// RestoreNaked loads persisted naked POCs. Call before the first tick.
func (e *Engine) RestoreNaked(entries []models.NakedPOC) {
	e.naked.Restore(entries)
}

// NakedPOCs returns the tracked naked POCs strongest first.
func (e *Engine) NakedPOCs() []models.NakedPOC {
	now := e.lastTick
	if !e.hasLast {
		now = time.Now()
	}
	out := e.naked.Untested(now)
	for i := range out {
		out[i].Symbol = e.symbol
	}
	return out
}

// Levels recomputes the reference levels from the current ledger.
func (e *Engine) Levels() (models.ReferenceLevels, bool) {
	return ReferenceLevels(e.ledger.Distribution(), e.cfg.ValueAreaTarget)
}

// Snapshot copies the derived state of the last processed tick.
func (e *Engine) Snapshot(withProfile bool) models.ProfileSnapshot {
	low, high, _ := e.ledger.Range()
	snap := models.ProfileSnapshot{
		Symbol:         e.symbol,
		Ready:          e.ready,
		SessionStart:   e.sess.start,
		LastTick:       e.lastTick,
		LastPrice:      e.lastPrice,
		TickCount:      e.tickCount,
		SessionHigh:    high,
		SessionLow:     low,
		InitialBalance: e.ledger.InitialBalance(),
		DayType:        e.dayType,
		SessionPhase:   e.phase,
		NakedPOCs:      e.NakedPOCs(),
	}
	if e.ready {
		lv := e.levels
		snap.Levels = &lv
		snap.HVNZones = append([]models.HVNZone(nil), e.nodes.HVN...)
		snap.LVNGaps = append([]models.LVNGap(nil), e.nodes.LVN...)
		snap.Scores = append([]models.SignalScore(nil), e.scores...)
	}
	if withProfile {
		snap.Profile = e.ledger.Snapshot()
	}
	return snap
}

func (e *Engine) reject(err error) models.TickResult {
	return models.TickResult{
		Ready: e.ready,
		Debug: models.Debug{Reason: err.Error(), NakedPOCCount: e.naked.Len()},
	}
}

// roll starts a new session when ts crosses the configured session start.
// rolls reports whether ts opens a new session.
func (e *Engine) rolls(ts time.Time) bool {
	return e.hasSession && sessionStartFor(ts, e.loc, e.offset).After(e.sess.start)
}

func (e *Engine) roll(ts time.Time) {
	start := sessionStartFor(ts, e.loc, e.offset)
	if !e.hasSession {
		e.sess.start = start
		e.hasSession = true
		return
	}
	if !start.After(e.sess.start) {
		return
	}
	e.closeSession()
	e.sess.start = start
}

func (e *Engine) closeSession() {
	summary := models.SessionSummary{
		Symbol:   e.symbol,
		Start:    e.sess.start,
		ClosedAt: e.lastTick,
		DayType:  models.DayUnknown,
	}
	if e.ledger.Total() > 0 {
		d := e.ledger.Distribution()
		if lv, ok := ReferenceLevels(d, e.cfg.ValueAreaTarget); ok {
			summary.Levels = &lv
			low, high, _ := e.ledger.Range()
			summary.DayType = ClassifyDay(e.ledger.InitialBalance(), high-low, d, e.cfg)

			strength := float64(lv.POCVolume) / float64(lv.TotalVolume)
			if e.naked.Record(lv.POC, strength, e.lastTick) {
				e.log.Info("naked poc recorded",
					logger.String("symbol", e.symbol),
					logger.Float64("price", lv.POC),
					logger.Float64("strength", strength),
				)
			}
		}
	}

	e.ledger.Reset()
	e.tickCount = 0
	e.ready = false
	e.levels = models.ReferenceLevels{}
	e.nodes = Nodes{}
	e.dayType = models.DayUnknown
	e.scores = nil

	summary.NakedPOCs = e.NakedPOCs()
	e.log.Info("session closed",
		logger.String("symbol", e.symbol),
		logger.Time("start", summary.Start),
		logger.String("day_type", string(summary.DayType)),
		logger.Int("naked_pocs", len(summary.NakedPOCs)),
	)
	if e.onClose != nil {
		e.onClose(summary)
	}
}

// advance moves the session clock to ts.
func (e *Engine) advance(price float64, ts time.Time, ticks int) {
	if e.hasLast {
		e.prevPrice = e.lastPrice
		e.hasPrev = true
	}
	e.lastPrice = price
	e.lastTick = ts
	e.hasLast = true
	e.tickCount += ticks
}

// testNaked marks naked POCs covered by the current session range.
func (e *Engine) testNaked() {
	low, high, ok := e.ledger.Range()
	if !ok {
		return
	}
	for _, n := range e.naked.Test(low, high) {
		e.log.Info("naked poc tested",
			logger.String("symbol", e.symbol),
			logger.Float64("price", n.Price),
		)
	}
}

func (e *Engine) warm() bool {
	return e.tickCount >= e.cfg.MinTicks && e.ledger.Levels() >= e.cfg.MinLevels
}

func (e *Engine) evaluate(t models.Tick, volume int64, naked []models.NakedPOC) models.TickResult {
	d := e.ledger.Distribution()
	lv, _ := ReferenceLevels(d, e.cfg.ValueAreaTarget)
	nodes := ClassifyNodes(d, lv.POCVolume, e.cfg)
	low, high, _ := e.ledger.Range()
	dayType := ClassifyDay(e.ledger.InitialBalance(), high-low, d, e.cfg)
	phase := e.sess.phase(t.Time)

	evs := e.scorer.evaluate(market{
		price:      t.Price,
		prevPrice:  e.prevPrice,
		hasPrev:    e.hasPrev,
		tickVolume: volume,
		volumeReal: !t.VolumeMissing,
		levels:     lv,
		nodes:      nodes,
		naked:      naked,
		phase:      phase,
	})

	e.ready = true
	e.levels = lv
	e.nodes = nodes
	e.dayType = dayType
	e.phase = phase
	e.scores = scores(evs)

	res := models.TickResult{
		Ready:       true,
		Environment: e.environment(t.Price, lv, nodes, dayType, phase),
		Scores:      e.scores,
		Debug: models.Debug{
			Reason:       ReasonOK,
			POC:          lv.POC,
			VAH:          lv.VAH,
			VAL:          lv.VAL,
			HVNZoneCount: len(nodes.HVN),
			LVNGapCount:  len(nodes.LVN),
		},
	}

	ev, fired := pick(evs)
	if !fired {
		return res
	}
	if reason, ok := gate(e.cfg, e.counters()); !ok {
		res.Debug.Reason = reason
		return res
	}
	sig := buildSignal(e.cfg, ev, t.Price, t.Time, e.newID())
	sig.Symbol = e.symbol
	res.Signal = sig
	return res
}

func (e *Engine) environment(price float64, lv models.ReferenceLevels, nodes Nodes, dayType models.DayType, phase models.SessionPhase) models.Environment {
	env := models.Environment{
		ValueAreaPosition: models.PositionInside,
		POCDistance:       math.Round((price-lv.POC)/e.cfg.TickSize*100) / 100,
		DayType:           dayType,
		SessionPhase:      phase,
	}
	switch {
	case price > lv.VAH:
		env.ValueAreaPosition = models.PositionAbove
	case price < lv.VAL:
		env.ValueAreaPosition = models.PositionBelow
	}

	best := math.Inf(1)
	for i := range nodes.HVN {
		if d := e.scorer.zoneDistance(price, nodes.HVN[i]); d < best {
			z := nodes.HVN[i]
			env.NearestHVN, best = &z, d
		}
	}
	best = math.Inf(1)
	for i := range nodes.LVN {
		g := nodes.LVN[i]
		d := e.scorer.zoneDistance(price, models.HVNZone{Low: g.Low, High: g.High})
		if price >= g.Low && price <= g.High {
			d = 0
		}
		if d < best {
			env.NearestLVN, best = &g, d
		}
	}
	return env
}

func validateTick(price float64, volume int64, ts time.Time) error {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0) || price < 0:
		return fmt.Errorf("%w: price %v", ErrInvalidTick, price)
	case volume < 0:
		return fmt.Errorf("%w: volume %d", ErrInvalidTick, volume)
	case ts.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTick)
	}
	return nil
}

func validateBar(b models.Candle) error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: bar value %v", ErrInvalidTick, v)
		}
	}
	if b.Low > b.High || b.Bucket.IsZero() {
		return fmt.Errorf("%w: bar range %v-%v", ErrInvalidTick, b.Low, b.High)
	}
	return nil
}
