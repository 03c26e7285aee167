package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/retroarcade/internal/arcade"
	"github.com/cory-johannsen/retroarcade/internal/bot"
	"github.com/cory-johannsen/retroarcade/internal/config"
	"github.com/cory-johannsen/retroarcade/internal/game/connectfour"
	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/matchmaking"
	"github.com/cory-johannsen/retroarcade/internal/game/session"
	"github.com/cory-johannsen/retroarcade/internal/game/tictactoe"
	"github.com/cory-johannsen/retroarcade/internal/observability"
	"github.com/cory-johannsen/retroarcade/internal/server"
	"github.com/cory-johannsen/retroarcade/internal/storage/postgres"
)

// botIDBase keeps simulated player ids clear of real connection ids.
const botIDBase int64 = 1 << 40

const shutdownTimeout = 5 * time.Second

// App is the wired server.
type App struct {
	Lifecycle *server.Lifecycle
	Logger    *zap.Logger
}

func newApp(lifecycle *server.Lifecycle, logger *zap.Logger) *App {
	return &App{Lifecycle: lifecycle, Logger: logger}
}

func newPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newGames() (*logic.Registry, error) {
	return logic.NewRegistry(tictactoe.Definition(), connectfour.Definition())
}

func newMatchmaking(cfg config.Config, logger *zap.Logger) *matchmaking.Manager {
	mc := cfg.Matchmaking
	kinds := make([]matchmaking.KindConfig, 0, len(mc.Kinds))
	for _, k := range mc.Kinds {
		kinds = append(kinds, matchmaking.KindConfig{
			Kind: logic.Kind(k),
			Tunables: matchmaking.Tunables{
				BaseDelta:      mc.BaseDelta,
				ExpandInterval: mc.ExpandInterval,
				ExpandAmount:   mc.ExpandAmount(k),
			},
		})
	}
	return matchmaking.NewManager(logger, kinds)
}

func newCreator(cfg config.Config, matches *matchmaking.Manager, games *logic.Registry, registry *session.Registry, logger *zap.Logger, metrics *observability.Metrics) *session.Creator {
	return session.NewCreator(matches, games, registry, logger, metrics,
		session.WithTickInterval(cfg.Scheduler.TickInterval),
		session.WithInboxSize(cfg.Session.InboxSize),
	)
}

func newAdminServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Admin.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// healthEndpoint serves the standard gRPC health service.
type healthEndpoint struct {
	grpc   *grpc.Server
	health *health.Server
}

func newHealthEndpoint() *healthEndpoint {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &healthEndpoint{grpc: gs, health: hs}
}

// newRatingSource connects to the profile store when the database is enabled.
// A nil source leaves roster ratings untouched.
func newRatingSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (bot.RatingSource, func(), error) {
	if !cfg.Database.Enabled {
		return nil, func() {}, nil
	}
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Health(ctx, shutdownTimeout); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database health check: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	return postgres.NewProfileRepository(pool.DB()), pool.Close, nil
}

func newBots(ctx context.Context, cfg config.Config, games *logic.Registry, srv *arcade.Server, ratings bot.RatingSource, logger *zap.Logger) ([]*bot.Bot, error) {
	if cfg.Bots.Roster == "" {
		return nil, nil
	}
	roster, err := bot.LoadRoster(cfg.Bots.Roster)
	if err != nil {
		return nil, err
	}
	if ratings != nil {
		roster.ResolveRatings(ctx, ratings, logger)
	}
	bots, err := bot.FromRoster(roster, games, srv, botIDBase, cfg.Session.OutboxSize, logger.Named("bot"))
	if err != nil {
		return nil, err
	}
	logger.Info("loaded bot roster", zap.String("path", cfg.Bots.Roster), zap.Int("bots", len(bots)))
	return bots, nil
}

// newLifecycle registers services in start order; they stop in reverse, so
// bots leave before the scheduler winds down its sessions.
func newLifecycle(
	cfg config.Config,
	logger *zap.Logger,
	creator *session.Creator,
	registry *session.Registry,
	metrics *observability.Metrics,
	adminSrv *http.Server,
	hp *healthEndpoint,
	bots []*bot.Bot,
) *server.Lifecycle {
	lc := server.NewLifecycle(logger)

	lc.Add("health", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Health.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Health.Addr(), err)
			}
			logger.Info("gRPC health listening", zap.String("addr", cfg.Health.Addr()))
			if err := hp.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		},
		StopFn: func() {
			hp.health.Shutdown()
			hp.grpc.GracefulStop()
		},
	})

	scheduler := server.NewLoopService(creator.Run)
	lc.Add("scheduler", &server.FuncService{
		StartFn: scheduler.Start,
		StopFn: func() {
			scheduler.Stop()
			creator.Close()
		},
	})

	lc.Add("purger", server.NewLoopService(func(ctx context.Context) {
		registry.RunPurger(ctx, cfg.Session.PurgeInterval, cfg.Session.MaxAge, logger.Named("purger"), func(ids []string) {
			metrics.SessionsPurged(len(ids))
		})
	}))

	lc.Add("admin", &server.FuncService{
		StartFn: func() error {
			logger.Info("admin API listening", zap.String("addr", adminSrv.Addr))
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := adminSrv.Shutdown(ctx); err != nil {
				logger.Warn("admin API shutdown", zap.Error(err))
			}
		},
	})

	if len(bots) > 0 {
		lc.Add("bots", server.NewLoopService(func(ctx context.Context) {
			if err := bot.RunAll(ctx, bots); err != nil {
				logger.Error("bots stopped", zap.Error(err))
			}
		}))
	}
	return lc
}
