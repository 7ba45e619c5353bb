package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	"FinProfile/pkg/logger"

	"github.com/sony/gobreaker"
)

// ErrSourceOpen is returned while the breaker rejects calls.
var ErrSourceOpen = errors.New("bar source circuit open")

// BreakerBarSource guards a BarSource with a circuit breaker so a failing
// history backend does not stall every engine start.
type BreakerBarSource struct {
	next domrepo.BarSource
	cb   *gobreaker.CircuitBreaker
}

var _ domrepo.BarSource = (*BreakerBarSource)(nil)

// NewBreakerBarSource trips after maxFailures consecutive failures and
// half-opens after openTimeout.
func NewBreakerBarSource(next domrepo.BarSource, name string, maxFailures uint32, openTimeout time.Duration, l *logger.Logger) *BreakerBarSource {
	if maxFailures == 0 {
		maxFailures = 3
	}
	if l == nil {
		l = logger.Nop()
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("bar source breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	}
	return &BreakerBarSource{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerBarSource) FetchBars(ctx context.Context, symbol string, from, to time.Time, size domrepo.BarSize) ([]models.Candle, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.FetchBars(ctx, symbol, from, to, size)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrSourceOpen, err)
		}
		return nil, err
	}
	return res.([]models.Candle), nil
}

// State reports the breaker state for health output.
func (b *BreakerBarSource) State() string {
	return b.cb.State().String()
}
