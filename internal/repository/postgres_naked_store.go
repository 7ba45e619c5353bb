package repository

import (
	"context"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	"FinProfile/pkg/postgres"

	"github.com/jmoiron/sqlx"
)

// NakedSchema creates the naked POC table.
var NakedSchema = []string{
	`CREATE TABLE IF NOT EXISTS naked_pocs (
		symbol      TEXT             NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		strength    DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ      NOT NULL,
		tested      BOOLEAN          NOT NULL DEFAULT FALSE,
		PRIMARY KEY (symbol, price)
	)`,
	`CREATE INDEX IF NOT EXISTS naked_pocs_symbol_recorded ON naked_pocs (symbol, recorded_at)`,
}

// PGNakedStore persists naked POC registries in PostgreSQL.
type PGNakedStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ domrepo.NakedStore = (*PGNakedStore)(nil)

func NewPGNakedStore(c *postgres.Client, timeout time.Duration) *PGNakedStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PGNakedStore{db: c.DB(), timeout: timeout}
}

func (s *PGNakedStore) Load(ctx context.Context, symbol string) ([]models.NakedPOC, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.NakedPOC
	err := s.db.SelectContext(ctx, &out, `
		SELECT symbol, price, strength, recorded_at, tested
		FROM naked_pocs
		WHERE symbol = $1 AND NOT tested
		ORDER BY recorded_at ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("load naked %s: %w", symbol, err)
	}
	return out, nil
}

// Save replaces the stored set for symbol in one transaction.
func (s *PGNakedStore) Save(ctx context.Context, symbol string, entries []models.NakedPOC) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM naked_pocs WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("clear naked %s: %w", symbol, err)
	}
	if len(entries) > 0 {
		rows := make([]models.NakedPOC, len(entries))
		for i, e := range entries {
			e.Symbol = symbol
			rows[i] = e
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO naked_pocs (symbol, price, strength, recorded_at, tested)
			VALUES (:symbol, :price, :strength, :recorded_at, :tested)
			ON CONFLICT (symbol, price) DO NOTHING`, rows)
		if err != nil {
			return fmt.Errorf("insert naked %s: %w", symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
