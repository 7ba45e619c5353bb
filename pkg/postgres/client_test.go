package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresDSN(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := NewClientFromDB(sqlx.NewDb(db, "postgres"))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS naked_pocs").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, c.Migrate(context.Background(), []string{"CREATE TABLE IF NOT EXISTS naked_pocs (id int)"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
