// Package main serves the recorded trade history over HTTP:
// - GET /trades?mint=<MINT>&limit=<N>: newest first, as JSON
// - /metrics and /health
//
// The backing store is the first configured of postgres-dsn, clickhouse-dsn
// or redis-addr.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mempool-flow/internal/config"
	"mempool-flow/internal/observability"
	chstore "mempool-flow/internal/storage/clickhouse"
	"mempool-flow/internal/storage/migrations"
	pgstore "mempool-flow/internal/storage/postgres"
)

const (
	defaultAddr     = ":8090"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve recorded trades for a mint over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runServer,
	}
	cmd.Flags().String("config", "", "config file path")
	cmd.Flags().String("addr", defaultAddr, "listen address")
	config.RegisterStorageFlags(cmd.Flags())
	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, backend, closeSource, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	mux := http.NewServeMux()
	mux.Handle("/trades", tradesHandler(source, logger))
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server start", zap.String("addr", addr), zap.String("backend", backend))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	logger.Info("server stopped")
	return nil
}

// openHistory connects to the first configured trade history backend.
func openHistory(ctx context.Context, cfg config.Config) (historySource, string, func(), error) {
	switch {
	case cfg.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, "", nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return storeHistory(pgstore.NewTradeStore(pool)), "postgres", pool.Close, nil

	case cfg.ClickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, "", nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		return storeHistory(chstore.NewTradeStore(conn)), "clickhouse", func() { conn.Close() }, nil

	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, "", nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisHistory(client, cfg.RedisChannel), "redis", func() { client.Close() }, nil
	}
	return nil, "", nil, errors.New("no trade history configured: set postgres-dsn, clickhouse-dsn or redis-addr")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
