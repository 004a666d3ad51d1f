package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-dist/meridian/internal/app"
	"github.com/meridian-dist/meridian/internal/collection"
	"github.com/meridian-dist/meridian/internal/creditnote"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/platform/db"
	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
	"github.com/meridian-dist/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clock, err := shared.NewZoneClock(cfg.TimeZone)
	if err != nil {
		logger.Error("load time zone", slog.Any("error", err))
		os.Exit(1)
	}
	validate := validator.New()
	events := shared.NewPGEventRecorder(pool, clock)
	audit := shared.NewAuditLogger(pool)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, events, audit, clock)
	salesHandler := sales.NewHandler(logger, salesService, validate, clock)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, events, clock)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate)

	collectionRepo := collection.NewRepository(pool)
	collectionService := collection.NewService(collectionRepo, events, clock)
	collectionHandler := collection.NewHandler(logger, collectionService, validate, clock)

	creditNoteRepo := creditnote.NewRepository(pool)
	creditNoteService := creditnote.NewService(creditNoteRepo, events, clock)
	creditNoteHandler := creditnote.NewHandler(logger, creditNoteService, validate)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(jobInspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SalesHandler:      salesHandler,
		InventoryHandler:  inventoryHandler,
		CollectionHandler: collectionHandler,
		CreditNoteHandler: creditNoteHandler,
		JobHandler:        jobHandler,
		Pool:              pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
