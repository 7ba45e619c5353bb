package repository

import (
	"context"
	"time"

	"FinProfile/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher delivers emitted signals to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.SignalDescriptor) error
	Close() error
}

// BarSource fetches historical bars used to seed a session before live ticks.
type BarSource interface {
	FetchBars(ctx context.Context, symbol string, from, to time.Time, size BarSize) ([]models.Candle, error)
}

// NakedStore persists the naked POC registry of each instrument.
type NakedStore interface {
	Load(ctx context.Context, symbol string) ([]models.NakedPOC, error)
	Save(ctx context.Context, symbol string, entries []models.NakedPOC) error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordSignal(symbol, setup string)
	RecordProfile(symbol string, levels models.ReferenceLevels, nakedCount int)
}
