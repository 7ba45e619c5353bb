package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	pkgch "FinProfile/pkg/clickhouse"
	"FinProfile/pkg/logger"
	"FinProfile/pkg/util"
)

// CHBarSource reads bootstrap bars from ClickHouse candle tables.
// 5m bars are folded from the 1m table.
type CHBarSource struct {
	db      *sql.DB
	table1s string
	table1m string
	log     *logger.Logger
}

var _ domrepo.BarSource = (*CHBarSource)(nil)

// NewCHBarSource creates a bar source. table1m is the minute candle table;
// the second table is derived by replacing the suffix.
func NewCHBarSource(ch *pkgch.Client, database, table1m string, l *logger.Logger) *CHBarSource {
	if l == nil {
		l = logger.Nop()
	}
	qualify := func(t string) string {
		if database == "" {
			return t
		}
		return database + "." + t
	}
	return &CHBarSource{
		db:      ch.DB(),
		table1s: qualify(secondTable(table1m)),
		table1m: qualify(table1m),
		log:     l.With(logger.String("component", "clickhouse_bars")),
	}
}

func secondTable(table1m string) string {
	const suffix = "_1m"
	if n := len(table1m); n > len(suffix) && table1m[n-len(suffix):] == suffix {
		return table1m[:n-len(suffix)] + "_1s"
	}
	return table1m + "_1s"
}

func (s *CHBarSource) FetchBars(ctx context.Context, symbol string, from, to time.Time, size domrepo.BarSize) ([]models.Candle, error) {
	start := time.Now()
	table := s.table1m
	if size == domrepo.Bar1s {
		table = s.table1s
	}
	from, to = util.AlignRange(from, to, size.Duration())

	q := fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC`, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		s.log.Error("clickhouse fetch_bars query error",
			logger.String("table", table),
			logger.String("symbol", symbol),
			logger.Error(err))
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if size == domrepo.Bar5m {
		out = Resample(out, size.Duration())
	}

	s.log.Debug("clickhouse fetch_bars ok",
		logger.String("table", table),
		logger.String("symbol", symbol),
		logger.String("size", string(size)),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// Resample folds ascending bars into buckets of step: first open, max high,
// min low, last close, summed volume.
func Resample(bars []models.Candle, step time.Duration) []models.Candle {
	if len(bars) == 0 || step <= 0 {
		return bars
	}
	out := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		bucket := b.Bucket.Truncate(step)
		if n := len(out); n > 0 && out[n-1].Bucket.Equal(bucket) {
			cur := &out[n-1]
			if b.High > cur.High {
				cur.High = b.High
			}
			if b.Low < cur.Low {
				cur.Low = b.Low
			}
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Bucket = bucket
		out = append(out, b)
	}
	return out
}
