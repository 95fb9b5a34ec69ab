package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver for local development

	"github.com/partha/checker-maker/pkg/api"
	"github.com/partha/checker-maker/pkg/audit"
	"github.com/partha/checker-maker/pkg/config"
	"github.com/partha/checker-maker/pkg/engine"
	"github.com/partha/checker-maker/pkg/middleware"
	"github.com/partha/checker-maker/pkg/observability"
)

func main() {
	port := flag.String("port", "", "Port to listen on (overrides CHECKER_PORT)")
	dbDriver := flag.String("db-driver", "", "Database driver: postgres or sqlite3 (overrides CHECKER_DB_DRIVER)")
	dbURL := flag.String("db-url", "", "Database URL or sqlite3 path (overrides CHECKER_DB_URL)")
	flag.Parse()

	if *port != "" {
		os.Setenv("CHECKER_PORT", *port)
	}
	if *dbDriver != "" {
		os.Setenv("CHECKER_DB_DRIVER", *dbDriver)
	}
	if *dbURL != "" {
		os.Setenv("CHECKER_DB_URL", *dbURL)
	}

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.PingTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	store, err := audit.NewDBStore(db, cfg.Database.Driver)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit store")
		os.Exit(1)
	}

	eng, err := engine.NewCheckerMaker(db, cfg.Database.Driver)
	if err != nil {
		logger.WithError(err).Error("failed to initialize process engine")
		os.Exit(1)
	}

	var registry *prometheus.Registry
	var metrics *audit.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = audit.NewMetrics(registry)
	}

	recorder := audit.NewRecorder(store, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(nil)
	limiter.StartCleanup(ctx)

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewServer(api.Options{
			DB:          db,
			Driver:      cfg.Database.Driver,
			Engine:      eng,
			Store:       store,
			Recorder:    recorder,
			Logger:      logger,
			Registry:    registry,
			RateLimiter: limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("starting checker-maker server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
}
