package main

import (
	"bank_ledger/internal/api"
	"bank_ledger/internal/config"
	"bank_ledger/internal/idgen"
	"bank_ledger/internal/ledger"
	"bank_ledger/internal/logger"
	"bank_ledger/internal/repository"
	"bank_ledger/internal/repository/jsonfile"
	"bank_ledger/internal/repository/memory"
	"bank_ledger/internal/repository/redisstore"
	"bank_ledger/internal/repository/sqlstore"
	"bank_ledger/internal/service"
	"bank_ledger/pkg/metrics"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bank_ledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("ids", cfg.IDs.Scheme))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, err := openPersister(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	store := memory.NewStore(persister, log.Named("store"))
	if err := store.Open(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("open store: %w", err)
	}

	ids, err := idgen.New(cfg.IDs.Scheme)
	if err != nil {
		_ = store.Close()
		return err
	}

	opts := []ledger.Option{ledger.WithLogger(log.Named("ledger"))}

	var collector *metrics.MetricsCollector
	if cfg.Metrics.Enabled {
		collector = metrics.NewMetricsCollector(log.Named("metrics"))
		opts = append(opts, ledger.WithRecorder(collector))
	}

	var audit *service.AuditService
	if cfg.Audit.Enabled {
		audit = service.NewAuditService(cfg.Audit.Workers, cfg.Audit.Buffer, log.Named("audit_service"), service.NewLogSink(log))
		opts = append(opts, ledger.WithPublisher(audit))
	}

	engine := ledger.NewEngine(store, ids, opts...)
	if err := engine.Open(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("open ledger: %w", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewAPIHandler(engine, log), log, api.RouterConfig{
		RateLimitEnabled: cfg.HTTP.RateLimitEnabled,
		RateLimitRPS:     cfg.HTTP.RateLimitRPS,
		RateLimitBurst:   cfg.HTTP.RateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if collector != nil {
		// Shutdown must find the server even if Serve has not run yet.
		collector.Server(cfg.Metrics.Addr)
		g.Go(func() error {
			return collector.Serve(cfg.Metrics.Addr)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")
		shutdown(log, httpServer, collector, audit, store)
		return nil
	})

	err = g.Wait()
	log.Info("Application shutdown complete")
	return err
}

func openPersister(cfg config.StorageConfig) (repository.Persister, error) {
	switch cfg.Driver {
	case "memory":
		return nil, nil
	case "json":
		return jsonfile.New(cfg.Path)
	case "sqlite", "postgres":
		return sqlstore.Open(cfg.Driver, cfg.DSN)
	case "redis":
		return redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// shutdown stops intake first, then drains the audit queue, then closes storage.
func shutdown(
	log *zap.Logger,
	httpServer *http.Server,
	collector *metrics.MetricsCollector,
	audit *service.AuditService,
	store *memory.Store,
) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if collector != nil {
		if err := collector.Shutdown(ctx); err != nil {
			log.Error("Metrics server shutdown failed", zap.Error(err))
		}
	}

	if audit != nil {
		if err := audit.Shutdown(ctx); err != nil {
			log.Error("Audit service shutdown failed", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		log.Error("Store close failed", zap.Error(err))
	}
}
