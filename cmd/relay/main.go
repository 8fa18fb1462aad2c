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

	httptransport "github.com/spec-kit/ticket-relay/internal/api/http"
	"github.com/spec-kit/ticket-relay/internal/api/http/handlers"
	"github.com/spec-kit/ticket-relay/internal/auth"
	"github.com/spec-kit/ticket-relay/internal/bot"
	"github.com/spec-kit/ticket-relay/internal/config"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/observability"
	"github.com/spec-kit/ticket-relay/internal/persistence"
	"github.com/spec-kit/ticket-relay/internal/platform/telegram"
	"github.com/spec-kit/ticket-relay/internal/repository"
	"github.com/spec-kit/ticket-relay/internal/service"
	"github.com/spec-kit/ticket-relay/internal/session"
	"github.com/spec-kit/ticket-relay/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, metrics, logger))

	client := telegram.NewClient(telegram.ClientConfig{
		BaseURL: cfg.Telegram.APIBaseURL,
		Token:   cfg.Telegram.BotToken,
		Timeout: cfg.Telegram.RequestTimeout(),
	})
	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Fatal("failed to reach telegram", zap.Error(err))
	}
	logger.Info("bot identity", zap.Int64("bot_id", me.ID))

	lifecycle := service.NewLifecycle(store, dispatcher, logger)
	router := service.NewRouter(service.RouterDependencies{
		Store:      store,
		Lifecycle:  lifecycle,
		Messenger:  client,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("router"),
		Config:     service.RouterConfig{DeliveryAck: cfg.Telegram.DeliveryAck},
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Lifecycle:  lifecycle,
		Messenger:  client,
		Dispatcher: dispatcher,
		Logger:     logger.Named("tickets"),
	})
	directory := service.NewDirectoryService(store, cfg.Telegram.AdminIDs, logger.Named("directory"))
	sweeper := service.NewSweeper(store, lifecycle, client, metrics, logger, service.SweeperConfig{
		Threshold:         cfg.Sweeper.Threshold(),
		NotifyConcurrency: cfg.Sweeper.NotifyConcurrency,
		NotifyTimeout:     cfg.Sweeper.NotifyTimeout(),
	})

	handler := bot.NewHandler(bot.HandlerDependencies{
		Directory:   directory,
		Tickets:     ticketService,
		Router:      router,
		Correlation: service.NewCorrelationIndex(store),
		Sessions:    session.NewRedisStore(redis.Client, cfg.Redis.SessionTTL(), logger),
		Messenger:   client,
		Logger:      logger.Named("bot"),
		BotID:       me.ID,
	})
	poller := telegram.NewPoller(client, handler, telegram.NewRedisOffsetStore(redis.Client), logger.Named("poller"), telegram.PollerConfig{
		Workers:     cfg.Telegram.Workers,
		PollTimeout: cfg.Telegram.PollTimeout(),
	})
	scheduler := worker.NewScheduler(sweeper, cfg.Sweeper.Interval(), logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Topics:         handlers.NewTopicsHandler(directory),
		Users:          handlers.NewUsersHandler(directory),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes), store.Users(), directory.IsAdmin),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	poller.Start(ctx)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	waitForShutdown(logger)

	poller.Stop()
	scheduler.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
