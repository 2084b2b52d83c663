package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/procurement-service/internal/api/http"
	"github.com/spec-kit/procurement-service/internal/api/http/handlers"
	"github.com/spec-kit/procurement-service/internal/auth"
	"github.com/spec-kit/procurement-service/internal/chat"
	"github.com/spec-kit/procurement-service/internal/command"
	"github.com/spec-kit/procurement-service/internal/config"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/events"
	"github.com/spec-kit/procurement-service/internal/observability"
	"github.com/spec-kit/procurement-service/internal/persistence"
	"github.com/spec-kit/procurement-service/internal/repository"
	"github.com/spec-kit/procurement-service/internal/service"
	"github.com/spec-kit/procurement-service/internal/worker"
)

type store struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	pinger  handlers.Pinger
	close   func()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if len(os.Args) != 3 {
			log.Fatal("usage: api hash-password <password>")
		}
		hash, err := auth.HashPassword(os.Args[2], auth.PasswordCost)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	busCtx, stopBus := context.WithCancel(ctx)
	busDone := make(chan struct{})
	var bus events.Dispatcher
	if redis.Enabled() {
		redisBus := events.NewRedisBus(redis.Client, events.RedisBusConfig{
			StreamPrefix:  cfg.Redis.StreamPrefix,
			ConsumerGroup: cfg.Redis.ConsumerGroup,
			ConsumerName:  cfg.Redis.ConsumerName,
		}, logger.Named("bus"))
		bus = redisBus
		go func() {
			defer close(busDone)
			if err := redisBus.Run(busCtx); err != nil {
				logger.Error("event bus stopped", zap.Error(err))
			}
		}()
	} else {
		bus = events.NewInMemoryDispatcher(logger.Named("bus"))
		close(busDone)
	}

	bindings := domain.RoleBindings{DeptHeadID: cfg.Roles.DeptHeadID, TreasuryID: cfg.Roles.TreasuryID}
	metrics := observability.NewMetrics()

	// the transport needs the inbound handler before the service exists
	var ticketService *service.TicketService
	inbound := func(ctx context.Context, msg chat.InboundMessage) error {
		return ticketService.HandleMessage(ctx, msg)
	}
	transport, err := openTransport(cfg, inbound, logger)
	if err != nil {
		logger.Fatal("failed to start chat transport", zap.Error(err))
	}

	notifier := service.NewNotificationService(st.tickets, transport, bindings, logger.Named("notify"), metrics)
	worker.StartNotificationWorker(notifier, bus)

	conversations := command.NewConversationStore(cfg.Workflow.ConversationTTL(), nil)
	ticketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo:           st.tickets,
		HistoryRepo:          st.history,
		Parser:               command.NewParser(bindings, conversations),
		Notifier:             notifier,
		Dispatcher:           bus,
		Bindings:             bindings,
		Logger:               logger.Named("workflow"),
		TicketNumberAttempts: cfg.Workflow.TicketNumberAttempts,
	})

	reconciler := worker.NewReconciler(st.tickets, notifier, logger.Named("reconcile"), metrics, nil).
		WithOverlap(cfg.Workflow.PollOverlap())
	if err := reconciler.Start(ctx, cfg.Workflow.PollSchedule); err != nil {
		logger.Fatal("failed to schedule reconciliation", zap.Error(err))
	}

	transportDone := make(chan struct{})
	go func() {
		defer close(transportDone)
		if err := transport.Start(ctx); err != nil {
			logger.Error("chat transport stopped", zap.Error(err))
		}
	}()

	authService := service.NewAuthService(cfg.Auth)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService.Operator())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	checks := map[string]handlers.Pinger{"store": st.pinger}
	if redis.Enabled() {
		checks["redis"] = redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Operations:     handlers.NewOperationsHandler(ticketService, reconciler, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("procurement service started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("store", cfg.Store.Driver),
		zap.String("transport", transport.Name()),
		zap.Bool("redis_bus", redis.Enabled()))

	sweepConversations(ctx, conversations, logger)
	waitForShutdown(logger)

	reconciler.Stop()
	_ = transport.Stop()
	waitFor(transportDone, 5*time.Second)
	stopBus()
	waitFor(busDone, 5*time.Second)
	redis.Close()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	st.close()
	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return &store{
			tickets: repository.NewSQLiteTicketRepository(db.DB, nil),
			history: repository.NewSQLiteTicketHistoryRepository(db.DB),
			pinger:  db,
			close:   db.Close,
		}, nil
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		return &store{
			tickets: repository.NewTicketRepository(pool, nil),
			history: repository.NewTicketHistoryRepository(pool),
			pinger:  pg,
			close:   pg.Close,
		}, nil
	}
	return nil, errors.New("unknown store driver " + cfg.Store.Driver)
}

func openTransport(cfg *config.Config, handler chat.InboundHandler, logger *zap.Logger) (chat.Transport, error) {
	if cfg.Telegram.Token == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, outbound messages are only logged")
		return chat.NewLogTransport(logger.Named("chat")), nil
	}
	return chat.NewTelegram(chat.TelegramConfig{
		Token:              cfg.Telegram.Token,
		PollTimeoutSeconds: cfg.Telegram.PollTimeoutSeconds,
	}, handler, logger.Named("chat"))
}

// sweepConversations drops expired dialogues in the background.
func sweepConversations(ctx context.Context, conversations *command.ConversationStore, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := conversations.Sweep(); n > 0 {
					logger.Debug("expired conversations dropped", zap.Int("count", n))
				}
			}
		}
	}()
}

func waitFor(done <-chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
