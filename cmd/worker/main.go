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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/relaybooks/relaybooks/internal/app"
	jobmetrics "github.com/relaybooks/relaybooks/internal/jobs"
	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/ledger/autopost"
	"github.com/relaybooks/relaybooks/internal/ledger/integrity"
	"github.com/relaybooks/relaybooks/internal/ledger/journal"
	"github.com/relaybooks/relaybooks/internal/observability"
	"github.com/relaybooks/relaybooks/internal/platform/cache"
	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/recon"
	"github.com/relaybooks/relaybooks/internal/recon/aging"
	"github.com/relaybooks/relaybooks/internal/shared"
	"github.com/relaybooks/relaybooks/jobs"
	"github.com/shopspring/decimal"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	failedFee, err := decimal.NewFromString(cfg.FailedDeliveryFee)
	if err != nil {
		logger.Error("parse failed delivery fee", slog.Any("error", err))
		os.Exit(1)
	}
	minCOGS, err := decimal.NewFromString(cfg.MinCOGSThreshold)
	if err != nil {
		logger.Error("parse min cogs threshold", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	registry := accounts.NewRegistry(accounts.NewStore())
	engine := journal.NewEngine(journal.NewStore(), journal.Config{
		MaxRetries:    cfg.EntryMaxRetries,
		BackoffMin:    cfg.EntryBackoffMin,
		BackoffJitter: cfg.EntryBackoffJitter,
	}, logger, metrics)
	autopostSvc := autopost.NewService(engine, registry, autopost.NewStore(), pool, autopost.Config{
		FailedDeliveryFee: failedFee,
		MinCOGSThreshold:  minCOGS,
	}, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobsClient.Close() }()

	auditLogger := shared.NewAuditLogger(pool)
	reconSvc := recon.NewService(recon.NewStore(), db.NewTransactor(pool), autopostSvc, auditLogger, metrics, logger).
		WithRefreshEnqueuer(jobsClient)
	agingCache := aging.NewReportCache(redisClient, cfg.AgingReportCacheTTL)
	agingSvc := aging.NewService(aging.NewStore(), db.NewTransactor(pool), agingCache, reconSvc, metrics, logger)
	verifier := integrity.NewVerifier(integrity.NewStore(), pool, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAgingRefresh, Handler: jobs.NewAgingRefreshHandler(agingSvc, jobMetrics, logger)},
			{Type: jobs.TaskAgingAutoBlock, Handler: jobs.NewAgingAutoBlockHandler(agingSvc, cfg.AgingAutoBlock, jobMetrics, logger)},
			{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(verifier, jobMetrics, logger)},
			{Type: jobs.TaskRevenueBackfill, Handler: jobs.NewRevenueBackfillHandler(autopostSvc, jobMetrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: jobs.NewAgingRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: jobs.NewAgingAutoBlockTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", metrics.Handler())
	jobs.NewHandler(inspector, logger).MountRoutes(router)
	httpServer := &http.Server{
		Addr:              cfg.WorkerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(ctx)
	})
	group.Go(func() error {
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
