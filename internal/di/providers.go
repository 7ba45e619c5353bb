package di

import (
	"context"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	"FinProfile/internal/domain/repository"
	"FinProfile/internal/handler/api"
	mid "FinProfile/internal/middleware"
	internalrepo "FinProfile/internal/repository"
	"FinProfile/internal/service/finnhub"
	"FinProfile/internal/usecase"
	"FinProfile/pkg/cache"
	pkgch "FinProfile/pkg/clickhouse"
	"FinProfile/pkg/config"
	xhttp "FinProfile/pkg/http"
	pkgkafka "FinProfile/pkg/kafka"
	"FinProfile/pkg/logger"
	"FinProfile/pkg/metrics"
	"FinProfile/pkg/postgres"
	"FinProfile/pkg/server"
	"FinProfile/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.ArchiveSignals {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.SignalsTable
		if err := client.InitSchema(ctx, internalrepo.SignalArchiveSchema(table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvidePostgresClient opens PostgreSQL when it backs the naked registry.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	if cfg.Registry.Store != "postgres" {
		return nil, nil
	}
	client, err := postgres.NewClient(
		postgres.WithDSN(cfg.Postgres.DSN),
		postgres.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Migrate(ctx, internalrepo.NakedSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideCache returns Redis when it backs the registry, memory otherwise.
// The API response cache shares it.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Registry.Store != "redis" {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil without brokers.
// Aggregated warn/error logs are shipped through it when a logs topic is set.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   10 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideSignalPublisher fans signals out to Kafka and the ClickHouse
// archive. With neither configured signals go to the log.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer, ch *pkgch.Client, l *logger.Logger) repository.SignalPublisher {
	var fan internalrepo.FanoutPublisher
	if producer != nil {
		fan = append(fan, internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic))
	}
	if ch != nil && cfg.ClickHouse.ArchiveSignals {
		fan = append(fan, internalrepo.NewCHSignalArchive(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.SignalsTable))
	}
	switch len(fan) {
	case 0:
		return internalrepo.NewLogSignalPublisher(l)
	case 1:
		return fan[0]
	default:
		return fan
	}
}

// ProvideNakedStore selects the naked POC registry backend.
func ProvideNakedStore(cfg *config.Config, c cache.Service, pg *postgres.Client) repository.NakedStore {
	if pg != nil {
		return internalrepo.NewPGNakedStore(pg, 5*time.Second)
	}
	return internalrepo.NewCacheNakedStore(c, cfg.Registry.TTL)
}

// ProvideBarSource builds the bootstrap bar source behind a circuit breaker,
// or nil when bootstrap is disabled.
func ProvideBarSource(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) repository.BarSource {
	var src repository.BarSource
	switch cfg.Bootstrap.Source {
	case "clickhouse":
		if ch == nil {
			return nil
		}
		src = internalrepo.NewCHBarSource(ch, cfg.ClickHouse.Database, cfg.ClickHouse.CandlesTable, l)
	case "http":
		src = internalrepo.NewHTTPBarSource(xhttp.NewClient(xhttp.WithTimeout(cfg.Bootstrap.Timeout)), cfg.Bootstrap.URL)
	default:
		return nil
	}
	return internalrepo.NewBreakerBarSource(src, "bootstrap_"+cfg.Bootstrap.Source,
		cfg.Bootstrap.Breaker.MaxFailures, cfg.Bootstrap.Breaker.OpenTimeout, l)
}

// ProvideBootstrapper creates the bootstrap use case.
func ProvideBootstrapper(cfg *config.Config, src repository.BarSource, l *logger.Logger) *usecase.Bootstrapper {
	return usecase.NewBootstrapper(src, cfg.Bootstrap.Lookback,
		repository.NormalizeBarSize(cfg.Bootstrap.BarSize), cfg.Bootstrap.Timeout, l)
}

// ProvideTradeProcessor creates trade processor use case.
func ProvideTradeProcessor(
	cfg *config.Config,
	pub repository.SignalPublisher,
	store repository.NakedStore,
	boot *usecase.Bootstrapper,
	metrics repository.Metrics,
	l *logger.Logger,
) *usecase.TradeProcessor {
	return usecase.NewTradeProcessor(cfg, pub, store, boot, metrics, l,
		usecase.WithStoreTimeout(cfg.Pipeline.FlushTimeout))
}

// ProvidePipeline builds the middleware pipeline between intake and engines.
func ProvidePipeline(cfg *config.Config, processor *usecase.TradeProcessor, metrics repository.Metrics, l *logger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(processor, metrics,
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithWorkers(cfg.Pipeline.Workers),
		mid.WithPipelineLogger(l),
		mid.WithTransform(func(t *models.Trade) *models.Trade {
			t.Symbol = util.NormalizeSymbol(t.Symbol)
			return t
		}),
	)
}

// ProvideMarketStream creates the Finnhub WebSocket stream when it is the
// tick source.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	if cfg.Source.Type != "finnhub" {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		l,
	)
}

// ProvideTradeCollector creates trade collector use case.
func ProvideTradeCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	pipe *mid.RealtimePipeline,
	metrics repository.Metrics,
	l *logger.Logger,
) *usecase.TradeCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewTradeCollector(stream, pipe, metrics, l, cfg.Finnhub.ReconnectDelay)
}

// ProvideKafkaConsumer creates a Kafka consumer when Kafka is the tick source.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Source.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.LogHook{Log: l, Slow: 250 * time.Millisecond}))
	return consumer, nil
}

// ProvideKafkaTicksHandler creates the handler for the ticks topic.
func ProvideKafkaTicksHandler(cfg *config.Config, pipe *mid.RealtimePipeline, metrics repository.Metrics) *usecase.KafkaTicksHandler {
	if cfg.Source.Type != "kafka" {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, pipe, metrics)
}

// ProvideProfileHandler creates the HTTP query handler.
func ProvideProfileHandler(l *logger.Logger, processor *usecase.TradeProcessor, c cache.Service) *api.ProfileEchoHandler {
	h := api.NewProfileEchoHandler(l, processor)
	h.SetCache(c, 2*time.Second)
	return h
}

// ProvideInfra groups the clients the App closes on shutdown.
func ProvideInfra(ch *pkgch.Client, pg *postgres.Client, c cache.Service) server.Infra {
	return server.Infra{ClickHouse: ch, Postgres: pg, Cache: c}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	processor *usecase.TradeProcessor,
	pipe *mid.RealtimePipeline,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	handler *api.ProfileEchoHandler,
	infra server.Infra,
) *server.App {
	return server.New(cfg, l, processor, pipe, collector, consumer, kh, handler, infra)
}
