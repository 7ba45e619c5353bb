package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"FinProfile/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ErrPermanent marks a handler error that must not be retried, such as a
// payload that cannot be decoded.
var ErrPermanent = errors.New("kafka: permanent failure")

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics and dispatches messages to a pool of
// workers. Every (topic, partition) pair is pinned to one worker so
// messages of a partition are handled strictly in offset order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]fetcher
	queues   []chan kafka.Message
	dlq      writer
	hook     ConsumerHook

	ctx       context.Context
	cancel    context.CancelFunc
	readersWG sync.WaitGroup
	workersWG sync.WaitGroup
	stopOnce  sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "finprofile",
		WorkerCount: 1,
		BufferSize:  1000,
		RetryMax:    3,
		BackoffMin:  100 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		Logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	c := newConsumer(cfg)
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	initMetrics()
	per := cfg.BufferSize / cfg.WorkerCount
	if per < 1 {
		per = 1
	}
	queues := make([]chan kafka.Message, cfg.WorkerCount)
	for i := range queues {
		queues[i] = make(chan kafka.Message, per)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:      cfg,
		log:      cfg.Logger.With(logger.String("component", "kafka_consumer")),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]fetcher),
		queues:   queues,
		hook:     NoopHook{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers a message handler for its topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// SetHook sets a hook implementation for lifecycle events.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start creates a reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}
	c.run()
	c.log.Info("kafka consumer started",
		logger.Int("workers", len(c.queues)),
		logger.Int("topics", len(c.readers)),
		logger.String("group", c.cfg.GroupID))
	return nil
}

func (c *Consumer) run() {
	for i := range c.queues {
		c.workersWG.Add(1)
		go c.worker(i)
	}
	for topic, r := range c.readers {
		c.readersWG.Add(1)
		go c.fetchLoop(topic, r)
	}
}

// Stop stops reading, drains the worker queues and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()
		stopErr = wait(ctx, &c.readersWG)
		if stopErr == nil {
			for _, q := range c.queues {
				close(q)
			}
			stopErr = wait(ctx, &c.workersWG)
		}
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Error("close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dlq writer", logger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped", logger.Error(stopErr))
	})
	return stopErr
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) fetchLoop(topic string, r fetcher) {
	defer c.readersWG.Done()
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 1)) {
				return
			}
			continue
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}
		idx := c.workerFor(msg.Topic, msg.Partition)
		select {
		case c.queues[idx] <- msg:
			consumerQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(c.queues[idx])))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) workerFor(topic string, partition int) int {
	if len(c.queues) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte{byte(partition), byte(partition >> 8), byte(partition >> 16), byte(partition >> 24)})
	return int(h.Sum32() % uint32(len(c.queues)))
}

func (c *Consumer) worker(idx int) {
	defer c.workersWG.Done()
	for msg := range c.queues[idx] {
		c.process(msg)
	}
}

// process runs the handler with retries, routes exhausted messages to the
// DLQ and commits the offset when the message is settled.
func (c *Consumer) process(msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	err := c.handleWithRetry(handler, msg)
	observeHandle(msg.Topic, time.Since(start), err)

	if err != nil {
		c.hook.OnError(context.Background(), msg.Topic, msg, msg.Value, err)
		c.log.Error("handle message",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err))
		if c.dlq == nil {
			return
		}
		c.toDLQ(msg, err)
	}
	if r := c.readers[msg.Topic]; r != nil {
		_ = c.commitWithRetry(r, msg, 3)
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg kafka.Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		hctx, hmsg, data, berr := c.hook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
		if berr != nil {
			return berr
		}
		err = safeHandle(handler, hctx, data)
		c.hook.AfterHandle(hctx, msg.Topic, hmsg, data, err)
		if err == nil || errors.Is(err, ErrPermanent) || attempt > c.cfg.RetryMax {
			return err
		}
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func safeHandle(h MessageHandler, ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrPermanent, r)
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) toDLQ(msg kafka.Message, cause error) {
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
		return
	}
	consumerDLQ.WithLabelValues(msg.Topic).Inc()
}

func (c *Consumer) commitWithRetry(r fetcher, msg kafka.Message, max int) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("commit offset", logger.Int("attempts", max), logger.Error(err))
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt <= 30 {
		if e := min * time.Duration(1<<uint(attempt-1)); e > 0 && e < max {
			exp = e
		}
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}
