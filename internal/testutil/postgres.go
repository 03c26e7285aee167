// Package testutil provides test helpers for container-backed storage tests
// and simulated player connections.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/storage/postgres"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "arcade"
	pgPassword = "arcade"
	pgDatabase = "arcade_test"
)

func postgresRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        pgImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// The server logs readiness twice: once for the init pass, once for real.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(45 * time.Second),
	}
}

// StartPostgres runs a disposable PostgreSQL server with the profile schema
// applied and returns settings that reach it. The test is skipped in short
// mode or when no container runtime is reachable.
func StartPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	start := time.Now()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: postgresRequest(),
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("resolving container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("resolving mapped port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Enabled:  true,
		Host:     host,
		Port:     port.Int(),
		User:     pgUser,
		Password: pgPassword,
		Name:     pgDatabase,
		SSLMode:  "disable",
		MaxConns: 4,
	}
	if err := postgres.MigrateUp(cfg.DSN()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	t.Logf("postgres ready at %s:%d [%s]", host, cfg.Port, time.Since(start))
	return cfg
}

// NewPool starts a migrated PostgreSQL server and returns a pool connected to
// it. The pool is closed when the test ends.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	cfg := StartPostgres(t)
	pool, err := postgres.NewPool(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool.DB()
}
