package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	mid "FinProfile/internal/middleware"
	pkgkafka "FinProfile/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages and forwards them to the pipeline.
type KafkaTicksHandler struct {
	topic   string
	next    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, next mid.Proc, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, next: next, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

type tickMessage struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

// Handle decodes {symbol, t, c, v}. t is unix seconds or milliseconds.
// Malformed and invalid messages are permanent failures; regressions are
// dropped.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode tick: %v", pkgkafka.ErrPermanent, err)
	}
	if m.T > 0 && m.T < 1e11 {
		m.T *= 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.T)).Seconds())

	err := h.next.Process(ctx, &models.Trade{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Price:     m.C,
		Volume:    m.V,
	})
	switch {
	case err == nil:
		h.metrics.RecordMessageSent("pipeline", m.Symbol)
		return nil
	case errors.Is(err, mid.ErrOutOfOrder):
		return nil
	case errors.Is(err, mid.ErrInvalidTrade):
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	default:
		return err
	}
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
