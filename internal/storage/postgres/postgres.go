// Package postgres stores player profiles in PostgreSQL using pgx v5 and
// owns the embedded schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/migrations"
)

// healthCheckPeriod is how often idle pool connections are probed.
const healthCheckPeriod = 30 * time.Second

// Pool is the profile store's connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.HealthCheckPeriod = healthCheckPeriod
	pc.ConnConfig.RuntimeParams["application_name"] = "arcade"
	return pc, nil
}

// NewPool connects to the database described by cfg and verifies it answers.
//
// Postcondition: Returns a ready Pool or a non-nil error; no connections are
// left open on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	db, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	p := &Pool{pool: db}
	if err := p.Health(ctx, 0); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return p, nil
}

// Health pings the database. A positive timeout bounds the ping.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.pool.Ping(ctx)
}

// Close releases every connection. The Pool is unusable afterwards.
func (p *Pool) Close() { p.pool.Close() }

// DB returns the pgx pool repositories query through.
func (p *Pool) DB() *pgxpool.Pool { return p.pool }

// NewMigrator returns a migrator over the embedded schema migrations.
//
// Postcondition: The caller must Close the returned migrator.
func NewMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration.
//
// Postcondition: Returns nil when the schema is current, including when
// there was nothing to apply.
func MigrateUp(dsn string) error {
	m, err := NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
