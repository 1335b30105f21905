package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/live-support/internal/api/http"
	"github.com/spec-kit/live-support/internal/api/http/handlers"
	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/config"
	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/events"
	"github.com/spec-kit/live-support/internal/matching"
	"github.com/spec-kit/live-support/internal/notify"
	"github.com/spec-kit/live-support/internal/observability"
	"github.com/spec-kit/live-support/internal/persistence"
	"github.com/spec-kit/live-support/internal/presence"
	"github.com/spec-kit/live-support/internal/repository"
	"github.com/spec-kit/live-support/internal/service"
	"github.com/spec-kit/live-support/internal/timeout"
	"github.com/spec-kit/live-support/internal/transport"
	"github.com/spec-kit/live-support/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	codeStore := repository.NewCodeStore(redis.Client,
		time.Duration(cfg.Auth.HandoffCodeTTLSeconds)*time.Second)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	tracker := presence.NewTracker(func(role domain.Role) time.Duration {
		if role == domain.RoleAgent {
			return cfg.Presence.AgentOfflineGrace
		}
		return cfg.Presence.UserOfflineGrace
	}, logger)

	scheduler := timeout.NewScheduler(logger)
	defer scheduler.Stop()

	taskPool := worker.NewPool(cfg.Worker.PoolSize, logger)
	defer taskPool.Stop()

	hub := transport.NewHub(tracker, metrics, logger)

	exclusions := matching.NewExclusionRegistry()
	engine := matching.NewEngine(cfg.Matching, matching.EngineDependencies{
		RequestRepo: requestRepo,
		UserRepo:    userRepo,
		Presence:    tracker,
		Exclusions:  exclusions,
		Workload:    matching.NewWorkloadCounter(requestRepo),
		Scheduler:   scheduler,
		Dispatcher:  dispatcher,
		Runner:      taskPool,
		Calls:       service.NewCallService(logger),
		Metrics:     metrics,
		Logger:      logger,
	})

	tracker.OnChange(func(actorID string, role domain.Role, state domain.PresenceState) {
		if state == domain.PresenceOffline {
			engine.HandleRequesterOffline(actorID)
		}
		if role == domain.RoleAgent {
			_ = dispatcher.Publish(context.Background(),
				events.NewEvent(events.EventAgentPresence, "", actorID,
					events.AgentPresencePayload{AgentID: actorID, State: state}))
		}
	})

	notifier := notify.NewService(dispatcher, hub, logger)
	notifier.RegisterHandlers()

	sweeper, err := worker.NewSweeper(cfg.Worker.SweepSchedule, engine, logger)
	if err != nil {
		logger.Fatal("failed to configure sweep schedule", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  userRepo,
		CodeStore: codeStore,
		Presence:  tracker,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Support:        handlers.NewSupportHandler(engine),
		WS:             handlers.NewWSHandler(hub),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
