package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/storage/postgres"
	"github.com/cory-johannsen/retroarcade/internal/testutil"
)

func TestMigratorAndPool(t *testing.T) {
	cfg := testutil.StartPostgres(t)

	m, err := postgres.NewMigrator(cfg.DSN())
	require.NoError(t, err)
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, m.Down())
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	require.NoError(t, postgres.MigrateUp(cfg.DSN()))
	require.NoError(t, postgres.MigrateUp(cfg.DSN()), "an up-to-date schema is not an error")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()
	assert.NoError(t, pool.Health(ctx, time.Second))

	var n int
	require.NoError(t, pool.DB().QueryRow(ctx, "SELECT count(*) FROM profiles").Scan(&n))
	assert.Zero(t, n)
}

func TestNewPoolUnreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "127.0.0.1", Port: 1, User: "arcade", Password: "arcade",
		Name: "arcade", SSLMode: "disable", MaxConns: 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := postgres.NewPool(ctx, cfg)
	assert.Error(t, err)
}
