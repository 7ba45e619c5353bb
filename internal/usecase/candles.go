package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	"FinProfile/internal/services/profile"
	"FinProfile/pkg/logger"
)

// Seeder is the part of an engine the bootstrapper needs.
type Seeder interface {
	Symbol() string
	Seed(bars []models.Candle) (int, error)
}

// Bootstrapper seeds new engines with recent historical bars so a profile
// is available before the first live tick.
type Bootstrapper struct {
	source   domrepo.BarSource
	lookback time.Duration
	size     domrepo.BarSize
	timeout  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewBootstrapper returns a bootstrapper. A nil source disables seeding.
func NewBootstrapper(source domrepo.BarSource, lookback time.Duration, size domrepo.BarSize, timeout time.Duration, l *logger.Logger) *Bootstrapper {
	if l == nil {
		l = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bootstrapper{
		source:   source,
		lookback: lookback,
		size:     size,
		timeout:  timeout,
		log:      l.With(logger.String("component", "bootstrap")),
		now:      time.Now,
	}
}

// Seed loads bars for the lookback window ending now and feeds them to e.
// Any failure is reported as profile.ErrBootstrapUnavailable; callers carry
// on with an empty profile.
func (b *Bootstrapper) Seed(ctx context.Context, e Seeder) (int, error) {
	if b == nil || b.source == nil || b.lookback <= 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	to := b.now().UTC()
	from := to.Add(-b.lookback)
	start := time.Now()
	bars, err := b.source.FetchBars(ctx, e.Symbol(), from, to, b.size)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", profile.ErrBootstrapUnavailable, e.Symbol(), err)
	}
	if len(bars) == 0 {
		b.log.Info("no bootstrap bars", logger.String("symbol", e.Symbol()))
		return 0, nil
	}

	used, err := e.Seed(bars)
	if err != nil {
		return 0, err
	}
	b.log.Info("profile seeded",
		logger.String("symbol", e.Symbol()),
		logger.String("size", string(b.size)),
		logger.Int("bars", len(bars)),
		logger.Int("used", used),
		logger.Duration("duration_ms", time.Since(start)))
	return used, nil
}

// IsUnavailable reports whether err means bootstrap data could not be used.
func IsUnavailable(err error) bool {
	return errors.Is(err, profile.ErrBootstrapUnavailable)
}
