package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"FinProfile/internal/domain/models"
	mid "FinProfile/internal/middleware"
	"FinProfile/pkg/util"
)

// ReplayStats summarises a CSV replay.
type ReplayStats struct {
	Rows    int
	Fed     int
	Skipped int
}

// Replay feeds a timestamp,price,volume CSV through proc as trades of
// symbol. A header row is skipped; malformed rows are counted and skipped.
// Timestamps may be RFC3339, unix seconds or unix milliseconds.
func Replay(ctx context.Context, r io.Reader, symbol string, proc mid.Proc) (ReplayStats, error) {
	var st ReplayStats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read csv line %d: %w", st.Rows+1, err)
		}
		st.Rows++

		t, ok := parseReplayRow(rec)
		if !ok {
			if st.Rows == 1 {
				continue // header
			}
			st.Skipped++
			continue
		}
		t.Symbol = symbol
		if err := proc.Process(ctx, t); err != nil {
			return st, fmt.Errorf("replay row %d: %w", st.Rows, err)
		}
		st.Fed++
	}
}

func parseReplayRow(rec []string) (*models.Trade, bool) {
	if len(rec) < 2 {
		return nil, false
	}
	ts, ok := util.ParseTime(strings.TrimSpace(rec[0]))
	if !ok {
		return nil, false
	}
	price, ok := util.ParseFloatLenient(rec[1])
	if !ok || price <= 0 {
		return nil, false
	}
	var volume float64
	if len(rec) > 2 {
		if volume, ok = util.ParseFloatLenient(rec[2]); !ok {
			return nil, false
		}
	}
	return &models.Trade{Timestamp: ts.UnixMilli(), Price: price, Volume: volume}, true
}
