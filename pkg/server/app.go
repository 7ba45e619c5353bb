package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"FinProfile/internal/handler/api"
	mid "FinProfile/internal/middleware"
	"FinProfile/internal/service/ratelimit"
	"FinProfile/internal/usecase"
	pkgch "FinProfile/pkg/clickhouse"
	"FinProfile/pkg/config"
	xhttp "FinProfile/pkg/http"
	pkgkafka "FinProfile/pkg/kafka"
	applogger "FinProfile/pkg/logger"
	"FinProfile/pkg/postgres"
)

// Infra groups the optional infrastructure clients owned by the App.
// Nil members are disabled.
type Infra struct {
	ClickHouse *pkgch.Client
	Postgres   *postgres.Client
	Cache      io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	processor  *usecase.TradeProcessor
	pipe       *mid.RealtimePipeline
	collector  *usecase.TradeCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	infra      Infra
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. collector is nil
// when ticks come from Kafka; consumer and kh are nil otherwise.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	processor *usecase.TradeProcessor,
	pipe *mid.RealtimePipeline,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	profileHandler *api.ProfileEchoHandler,
	infra Infra,
) *App {
	a := &App{
		cfg:       cfg,
		log:       log,
		processor: processor,
		pipe:      pipe,
		collector: collector,
		consumer:  consumer,
		infra:     infra,
	}
	if kh != nil {
		a.kh = kh
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	limiter := ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	a.httpServer = xhttp.NewServer(
		[]xhttp.Handler{profileHandler, a.health()},
		xhttp.WithAddr(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(log),
		xhttp.WithMiddleware(limiter.Middleware()),
	)
	return a
}

func (a *App) health() *HealthHandler {
	h := NewHealthHandler(0)
	if a.infra.ClickHouse != nil {
		h.Add("clickhouse", a.infra.ClickHouse.Health)
	}
	if a.infra.Postgres != nil {
		h.Add("postgres", a.infra.Postgres.Health)
	}
	if a.collector != nil {
		h.Add("stream", func(context.Context) error {
			if !a.collector.IsConnected() {
				return errors.New("market stream disconnected")
			}
			return nil
		})
	}
	return h
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.processor.Warm(ctx, a.symbols()); err != nil {
		return fmt.Errorf("warm engines: %w", err)
	}
	a.pipe.Start(ctx)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			return fmt.Errorf("collector start: %w", err)
		}
		a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer start: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) symbols() []string {
	if a.cfg.Source.Type == "finnhub" {
		return a.cfg.Finnhub.Symbols
	}
	out := make([]string, 0, len(a.cfg.Instruments))
	for s := range a.cfg.Instruments {
		out = append(out, s)
	}
	return out
}

// shutdown stops intake first, drains the pipeline, persists registries and
// finally closes infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	} else if err := a.pipe.Stop(ctx); err != nil {
		a.log.Warn("pipeline stop error", applogger.Error(err))
		errs = append(errs, err)
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.log.RemoveCollector()
	// Flushes registries and closes the signal publisher, which owns the producer.
	if err := a.processor.Close(ctx); err != nil {
		a.log.Error("processor close error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.infra.ClickHouse != nil {
		if err := a.infra.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.infra.Postgres != nil {
		if err := a.infra.Postgres.Close(); err != nil {
			a.log.Warn("postgres close error", applogger.Error(err))
		}
	}
	if a.infra.Cache != nil {
		if err := a.infra.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
