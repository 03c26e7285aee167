// Package main provides the arcade server binary: matchmaking, the session
// scheduler, the admin API and optional simulated players.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	roster := flag.String("roster", "", "bot roster YAML; overrides bots.roster")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *roster != "" {
		cfg.Bots.Roster = *roster
	}

	logger, level, err := observability.NewLoggerWithLevel(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arcade",
		zap.Strings("kinds", cfg.Matchmaking.Kinds),
		zap.String("admin_addr", cfg.Admin.Addr()),
		zap.String("health_addr", cfg.Health.Addr()),
		zap.Bool("database", cfg.Database.Enabled),
	)

	app, cleanup, err := initApp(ctx, cfg, logger, level)
	if err != nil {
		logger.Fatal("wiring arcade", zap.Error(err))
	}
	defer cleanup()

	app.Logger.Info("arcade ready",
		zap.Strings("services", app.Lifecycle.Names()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := app.Lifecycle.Run(ctx); err != nil {
		app.Logger.Error("server error", zap.Error(err))
	}
}
