package middleware

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	"FinProfile/pkg/logger"
)

var (
	ErrInvalidTrade   = errors.New("invalid trade")
	ErrOutOfOrder     = errors.New("trade out of order")
	ErrBufferFull     = errors.New("pipeline buffer full")
	ErrPipelineClosed = errors.New("pipeline stopped")
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

// RealtimePipeline sits between a trade source and the profile engines.
// It validates trades, drops per-symbol regressions and queues accepted
// trades on a fixed set of workers. A symbol always maps to the same
// worker so its trades reach the processor in arrival order.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *logger.Logger

	workers   int
	bufSize   int
	queues    []chan *models.Trade
	transform func(*models.Trade) *models.Trade

	mu       sync.Mutex
	started  bool
	stopped  bool
	lastSeen map[string]int64 // per-symbol last accepted timestamp
	wg       sync.WaitGroup
}

type PipelineOption func(*RealtimePipeline)

// WithBufferSize sets the per-worker queue capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithWorkers sets the number of processing workers.
func WithWorkers(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithTransform sets a hook that rewrites trades before validation.
func WithTransform(fn func(*models.Trade) *models.Trade) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		log:      logger.Nop(),
		workers:  4,
		bufSize:  1000,
		lastSeen: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queues = make([]chan *models.Trade, p.workers)
	for i := range p.queues {
		p.queues[i] = make(chan *models.Trade, p.bufSize)
	}
	return p
}

// Start launches the workers. Calling it twice is a no-op.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for _, q := range p.queues {
		p.wg.Add(1)
		go p.worker(ctx, q)
	}
}

// Stop closes the queues and waits for the workers to drain them or for
// ctx to expire.
func (p *RealtimePipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline drain: %w", ctx.Err())
	}
}

// Process validates t and queues it for its symbol's worker. Rejected and
// dropped trades are counted and reported as errors; the caller does not
// need to retry them.
func (p *RealtimePipeline) Process(_ context.Context, t *models.Trade) error {
	if p.transform != nil && t != nil {
		t = p.transform(t)
	}
	if err := validateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPipelineClosed
	}
	if last, ok := p.lastSeen[t.Symbol]; ok && t.Timestamp < last {
		p.metrics.RecordError("pipeline_out_of_order")
		return fmt.Errorf("%w: %s %d < %d", ErrOutOfOrder, t.Symbol, t.Timestamp, last)
	}

	q := p.queues[p.shard(t.Symbol)]
	select {
	case q <- t:
		p.lastSeen[t.Symbol] = t.Timestamp
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return ErrBufferFull
	}
}

func (p *RealtimePipeline) shard(symbol string) int {
	if len(p.queues) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *RealtimePipeline) worker(ctx context.Context, q <-chan *models.Trade) {
	defer p.wg.Done()
	for t := range q {
		start := time.Now()
		if err := p.handle(ctx, t); err != nil {
			p.metrics.RecordError("pipeline_process")
			p.log.Warn("trade processing failed",
				logger.String("symbol", t.Symbol),
				logger.Int64("ts", t.Timestamp),
				logger.Error(err))
			continue
		}
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
}

// handle runs the processor for one trade. A panic is turned into an error so
// the worker keeps draining its queue.
func (p *RealtimePipeline) handle(ctx context.Context, t *models.Trade) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", t.Symbol, r)
		}
	}()
	return p.proc.Process(ctx, t)
}

func validateTrade(t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTrade)
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: symbol empty", ErrInvalidTrade)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp invalid", ErrInvalidTrade)
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidTrade, t.Price)
	}
	if math.IsNaN(t.Volume) || math.IsInf(t.Volume, 0) || t.Volume < 0 {
		return fmt.Errorf("%w: volume %v", ErrInvalidTrade, t.Volume)
	}
	return nil
}
