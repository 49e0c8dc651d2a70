package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/wallet-ledger/internal/config"
	"github.com/josh-kwaku/wallet-ledger/internal/directory"
	"github.com/josh-kwaku/wallet-ledger/internal/idempotency"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/metrics"
	"github.com/josh-kwaku/wallet-ledger/internal/notify"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("wallet-ledger exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init("wallet-ledger", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		ApplicationName:  "wallet-ledger",
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	accounts := repository.NewAccountRepository(db)
	txns := repository.NewTransactionRepository(db)
	dir := directory.New(repository.NewAliasRepository(db))
	collector := metrics.NewCollector()

	var notifier notify.Notifier = notify.Nop{}
	var notifierHealth pinger
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		rn := notify.NewRedis(client, notify.RedisConfig{
			Channel: cfg.NotifyChannel,
			Timeout: cfg.NotifyTimeout(),
		})
		if err := rn.PingContext(ctx); err != nil {
			slog.Warn("redis unreachable at startup, notifications will be dropped until it recovers", "error", err)
		}
		notifier = rn
		notifierHealth = rn
	} else {
		slog.Info("REDIS_ADDR not set, notifications disabled")
	}

	svc := ledger.NewService(db, accounts, txns, idempotency.NewGuard(txns), dir, notifier, collector)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: newRouter(routerDeps{
			cfg:            cfg,
			ledger:         svc,
			directory:      dir,
			db:             db,
			notifierHealth: notifierHealth,
			metrics:        collector.Handler(),
		}),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
