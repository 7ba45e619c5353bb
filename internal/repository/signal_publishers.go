package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	pkgch "FinProfile/pkg/clickhouse"
	pkgkafka "FinProfile/pkg/kafka"
	"FinProfile/pkg/logger"
)

// KafkaSignalPublisher writes signals to a topic keyed by symbol.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.SignalDescriptor) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s)
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

// SignalArchiveSchema creates the ClickHouse signal archive table.
func SignalArchiveSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts          DateTime64(3, 'UTC'),
            id          String,
            symbol      LowCardinality(String),
            type        LowCardinality(String),
            direction   LowCardinality(String),
            entry       Float64,
            stop        Float64,
            target      Float64,
            confidence  Float64,
            win_rate    Float64,
            reward_risk Float64,
            reasoning   String
        ) ENGINE = MergeTree
        ORDER BY (symbol, ts)`, table)}
}

// CHSignalArchive appends every emitted signal to a ClickHouse table.
type CHSignalArchive struct {
	db    *sql.DB
	table string
}

var _ domrepo.SignalPublisher = (*CHSignalArchive)(nil)

func NewCHSignalArchive(ch *pkgch.Client, table string) *CHSignalArchive {
	return &CHSignalArchive{db: ch.DB(), table: table}
}

func (a *CHSignalArchive) Publish(ctx context.Context, s *models.SignalDescriptor) error {
	q := fmt.Sprintf(`INSERT INTO %s (ts, id, symbol, type, direction, entry, stop, target, confidence, win_rate, reward_risk, reasoning)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, a.table)
	_, err := a.db.ExecContext(ctx, q,
		s.Timestamp.UTC(), s.ID, s.Symbol, string(s.Type), string(s.Direction),
		s.EntryPrice, s.Stop, s.Target, s.Confidence, s.ExpectedWinRate, s.ExpectedRewardRisk, s.Reasoning)
	if err != nil {
		return fmt.Errorf("archive signal %s: %w", s.ID, err)
	}
	return nil
}

// Close is a no-op; the ClickHouse pool is owned by the caller.
func (a *CHSignalArchive) Close() error { return nil }

// FanoutPublisher delivers every signal to all publishers and joins their errors.
type FanoutPublisher []domrepo.SignalPublisher

var _ domrepo.SignalPublisher = FanoutPublisher(nil)

func (f FanoutPublisher) Publish(ctx context.Context, s *models.SignalDescriptor) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanoutPublisher) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSignalPublisher writes signals to the structured log. It is the
// fallback sink when no broker is configured.
type LogSignalPublisher struct {
	log *logger.Logger
}

var _ domrepo.SignalPublisher = (*LogSignalPublisher)(nil)

func NewLogSignalPublisher(l *logger.Logger) *LogSignalPublisher {
	return &LogSignalPublisher{log: l.With(logger.String("component", "signals"))}
}

func (p *LogSignalPublisher) Publish(_ context.Context, s *models.SignalDescriptor) error {
	p.log.Info("signal",
		logger.String("id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.String("type", string(s.Type)),
		logger.String("direction", string(s.Direction)),
		logger.Float64("entry", s.EntryPrice),
		logger.Float64("stop", s.Stop),
		logger.Float64("target", s.Target),
		logger.Float64("confidence", s.Confidence),
		logger.String("reasoning", s.Reasoning))
	return nil
}

func (p *LogSignalPublisher) Close() error { return nil }
