// Package main applies the embedded profile schema migrations.
//
// Usage:
//
//	migrate -config configs/dev.yaml up [n]
//	migrate -config configs/dev.yaml down [n]
//	migrate -config configs/dev.yaml version
//	migrate -config configs/dev.yaml force <version>
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/observability"
	"github.com/cory-johannsen/retroarcade/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg.Database, flag.Args(), logger.Named("migrate")); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}

// run executes one migration command. A missing command means "up".
func run(db config.DatabaseConfig, args []string, logger *zap.Logger) error {
	start := time.Now()
	cmd := "up"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	n, err := optionalInt(args)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	m, err := postgres.NewMigrator(db.DSN())
	if err != nil {
		return err
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = steps(m, n, m.Up)
	case "down":
		err = steps(m, -n, m.Down)
	case "force":
		if len(args) == 0 {
			return errors.New("force: a version is required")
		}
		err = m.Force(n)
	case "version":
	default:
		return fmt.Errorf("unknown command %q: want up, down, version or force", cmd)
	}

	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		return err
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", verr)
	}
	logger.Info("schema",
		zap.String("command", cmd),
		zap.Bool("changed", !noChange && cmd != "version"),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// steps migrates n steps, or all the way when n is zero.
func steps(m *migrate.Migrate, n int, all func() error) error {
	if n == 0 {
		return all()
	}
	return m.Steps(n)
}

func optionalInt(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[0])
	}
	if n < 0 {
		return 0, fmt.Errorf("%d must not be negative", n)
	}
	return n, nil
}
