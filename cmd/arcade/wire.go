//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/admin"
	"github.com/cory-johannsen/retroarcade/internal/arcade"
	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/game/session"
	"github.com/cory-johannsen/retroarcade/internal/observability"
)

var metricsSet = wire.NewSet(
	newPrometheusRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	observability.NewMetrics,
)

var arcadeSet = wire.NewSet(
	newGames,
	newMatchmaking,
	session.NewRegistry,
	newCreator,
	arcade.NewServer,
)

var surfaceSet = wire.NewSet(
	wire.Bind(new(admin.Views), new(*arcade.Server)),
	admin.NewHandler,
	newAdminServer,
	newHealthEndpoint,
)

func initApp(ctx context.Context, cfg config.Config, logger *zap.Logger, level zap.AtomicLevel) (*App, func(), error) {
	wire.Build(
		metricsSet,
		arcadeSet,
		surfaceSet,
		newRatingSource,
		newBots,
		newLifecycle,
		newApp,
	)
	return nil, nil, nil
}
