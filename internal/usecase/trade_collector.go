package usecase

import (
	"context"
	"errors"
	"time"

	"FinProfile/internal/domain/models"
	drepo "FinProfile/internal/domain/repository"
	mid "FinProfile/internal/middleware"
	"FinProfile/pkg/logger"
)

// TradeCollector reads trades from a market stream into the pipeline.
type TradeCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger
	retry   time.Duration
	done    chan struct{}
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, l *logger.Logger, retry time.Duration) *TradeCollector {
	if l == nil {
		l = logger.Nop()
	}
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &TradeCollector{
		stream:  stream,
		pipe:    pipe,
		metrics: metrics,
		log:     l.With(logger.String("component", "collector")),
		retry:   retry,
		done:    make(chan struct{}),
	}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// ErrStreamClosed is reported when the stream ends without an error.
var ErrStreamClosed = errors.New("market stream closed")

// Start connects, subscribes and begins forwarding trades until ctx ends.
// Stream failures trigger a reconnect and a fresh read.
func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	go c.run(ctx)
	return nil
}

// Done is closed once the collector stops reading.
func (c *TradeCollector) Done() <-chan struct{} { return c.done }

func (c *TradeCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		trCh, errCh := c.stream.Read(ctx)
		err := c.consume(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("stream interrupted, reconnecting", logger.Error(err))
		if !c.reconnect(ctx) {
			return
		}
	}
}

func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if trCh == nil {
					return ErrStreamClosed
				}
				continue
			}
			if err != nil {
				c.drain(ctx, trCh)
				return err
			}
		case t, ok := <-trCh:
			if !ok {
				trCh = nil
				if errCh == nil {
					return ErrStreamClosed
				}
				continue
			}
			c.forward(ctx, t)
		}
	}
}

// drain forwards trades already buffered when the stream failed.
func (c *TradeCollector) drain(ctx context.Context, trCh <-chan *models.Trade) {
	for {
		select {
		case t, ok := <-trCh:
			if !ok {
				return
			}
			c.forward(ctx, t)
		default:
			return
		}
	}
}

func (c *TradeCollector) forward(ctx context.Context, t *models.Trade) {
	if t == nil {
		return
	}
	if err := c.pipe.Process(ctx, t); err != nil && !errors.Is(err, mid.ErrOutOfOrder) {
		c.log.Debug("trade dropped", logger.String("symbol", t.Symbol), logger.Error(err))
	}
}

func (c *TradeCollector) reconnect(ctx context.Context) bool {
	for {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			return true
		}
		c.metrics.RecordError("stream_reconnect")
		c.log.Error("reconnect failed", logger.Error(err), logger.Duration("retry_in", c.retry))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retry):
		}
	}
}

// Shutdown closes the stream and drains the pipeline.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	err := c.stream.Close()
	return errors.Join(err, c.pipe.Stop(ctx))
}
