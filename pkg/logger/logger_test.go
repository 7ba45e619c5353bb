package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).With(String("symbol", "BTCUSDT"))

	log.Info("signal", Float64("score", 7.5), Int("ticks", 12), Duration("elapsed", 1500*time.Millisecond), Error(nil))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "signal", line["message"])
	assert.Equal(t, "BTCUSDT", line["symbol"])
	assert.Equal(t, 7.5, line["score"])
	assert.Equal(t, float64(12), line["ticks"])
	assert.NotContains(t, line, "error")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	log := NewWithWriter(&bytes.Buffer{})
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Warn("stale tick", String("symbol", "ETHUSDT"))
	}
	log.Error("publish failed", Error(errors.New("broker down")))
	log.Info("ignored")
	log.RemoveCollector()

	require.Equal(t, 1, pub.count())
	assert.Equal(t, "logs", pub.topic)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "warn", batch[0].Level)
	assert.Equal(t, 3, batch[0].Count)
	assert.Equal(t, "error", batch[1].Level)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("warn", "a", nil, "x.go:1")
	c.AddLog("warn", "b", nil, "x.go:2")

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorReachesChildLoggers(t *testing.T) {
	pub := &capturePublisher{}
	root := NewWithWriter(&bytes.Buffer{})
	child := root.With(String("component", "pipeline"))

	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})
	child.Warn("buffer full", String("symbol", "SPY"))
	root.RemoveCollector()
	child.Warn("after removal")

	require.Equal(t, 1, pub.count())
	batch := pub.batches[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "buffer full", batch[0].Message)
	assert.Equal(t, "SPY", batch[0].Fields["symbol"])
}
