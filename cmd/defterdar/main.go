package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/defterdar/defterdar/internal/app"
	closesvc "github.com/defterdar/defterdar/internal/close"
	"github.com/defterdar/defterdar/internal/invoicing"
	"github.com/defterdar/defterdar/internal/ledger"
	"github.com/defterdar/defterdar/internal/ledger/accounts"
	"github.com/defterdar/defterdar/internal/ledger/mappings"
	"github.com/defterdar/defterdar/internal/ledger/periods"
	"github.com/defterdar/defterdar/internal/ledger/reports"
	"github.com/defterdar/defterdar/internal/observability"
	"github.com/defterdar/defterdar/internal/platform/cache"
	"github.com/defterdar/defterdar/internal/platform/db"
	"github.com/defterdar/defterdar/internal/shared"
	"github.com/defterdar/defterdar/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	journalRepo := ledger.NewRepository(dbpool)
	journalService := ledger.NewService(journalRepo, auditLogger, reportCache)
	journalHandler := ledger.NewHandler(logger, journalService)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, auditLogger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsService := reports.NewService(reportsRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	mappingsRepo := mappings.NewRepository(dbpool)
	mappingsHandler := mappings.NewHandler(logger, mappingsRepo)

	invoiceRepo := invoicing.NewRepository(dbpool)
	invoiceService := invoicing.NewService(invoiceRepo, mappingsRepo, auditLogger, reportCache)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService)

	closeRepo := closesvc.NewRepository(dbpool)
	closeService := closesvc.NewService(closeRepo, mappingsRepo, auditLogger, reportCache)
	closeHandler := closesvc.NewHandler(logger, closeService)

	metrics := observability.NewMetrics()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		JournalHandler:  journalHandler,
		AccountsHandler: accountsHandler,
		PeriodsHandler:  periodsHandler,
		MappingsHandler: mappingsHandler,
		ReportsHandler:  reportsHandler,
		InvoiceHandler:  invoiceHandler,
		CloseHandler:    closeHandler,
		Metrics:         metrics,
		Jobs:            jobsClient,
		Pool:            dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
