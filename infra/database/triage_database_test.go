package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLXFromPool(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *PostgresConfig
		maxConns int
	}{
		{"explicit config", &PostgresConfig{MaxConns: 7}, 7},
		{"defaults", nil, int(DefaultPostgresConfig().MaxConns)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// pgxpool dials lazily, no server is needed
			pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/triage")
			require.NoError(t, err)
			defer pool.Close()

			db := NewSQLXFromPool(pool, tt.cfg)
			defer db.Close()

			assert.Equal(t, "pgx", db.DriverName())
			assert.Equal(t, tt.maxConns, db.Stats().MaxOpenConnections)
		})
	}
}

func TestDefaultRedisConfig_ReadOutlastsBlock(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Greater(t, cfg.ReadTimeout.Seconds(), 5.0)
}
