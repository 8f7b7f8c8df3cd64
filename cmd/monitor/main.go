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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"mempool-flow/internal/auth"
	"mempool-flow/internal/config"
	"mempool-flow/internal/inference"
	"mempool-flow/internal/observability"
	"mempool-flow/internal/price"
	"mempool-flow/internal/solana"
	"mempool-flow/internal/stream"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "monitor <MINT>",
		Short:        "Infer buy/sell flow for a token from pending transactions",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runMonitor,
	}
	cmd.Flags().String("config", "", "config file path")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mint := args[0]
	if !solana.IsPubkey(mint) {
		return fmt.Errorf("invalid mint address %q", mint)
	}

	kp, created, err := auth.LoadOrGenerate(cfg.Keypair)
	if err != nil {
		return fmt.Errorf("load keypair: %w", err)
	}
	if created {
		logger.Info("generated new auth keypair",
			zap.String("path", cfg.Keypair),
			zap.String("pubkey", kp.PublicKey()),
		)
	} else {
		logger.Info("using existing auth keypair",
			zap.String("path", cfg.Keypair),
			zap.String("pubkey", kp.PublicKey()),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
	)
	if slot, err := rpc.GetSlot(ctx); err != nil {
		logger.Warn("rpc probe failed", zap.String("rpc", cfg.RPCURL), zap.Error(err))
	} else {
		logger.Debug("rpc reachable", zap.Int64("slot", slot))
	}

	oracle := price.NewOracle(
		price.NewBinanceSource(cfg.PriceURL, price.WithSymbol(cfg.PriceSymbol)),
		cfg.PriceInterval,
		logger,
	)
	oracle.Prime(ctx)

	outputs, err := buildSinks(ctx, cfg, mint, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer outputs.Close()

	wsCfg := solana.DefaultWSConfig()
	wsCfg.SubscribeMethod = cfg.SubscribeMethod
	wsCfg.NotificationMethod = cfg.NotificationMethod
	feed := solana.NewPendingTxFeed(cfg.WSURL, wsCfg,
		solana.PendingTxFilter{Accounts: []string{mint}},
		func() (http.Header, error) { return auth.Headers(kp, time.Now()), nil },
		logger,
	)

	engine := inference.NewEngine(mint, logger)
	driver := stream.NewDriver(stream.DriverOptions{
		Subscription:  feed,
		Simulator:     rpc,
		Engine:        engine,
		Prices:        oracle,
		Sink:          outputs.Sink,
		FlushInterval: cfg.FlushInterval,
		Logger:        logger,
	})

	logger.Info("monitor start",
		zap.String("mint", engine.Mint()),
		zap.String("ws", cfg.WSURL),
		zap.String("rpc", cfg.RPCURL),
		zap.Float64("sol_usd", oracle.Current()),
		zap.Strings("sinks", outputs.Names()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return oracle.Run(gctx) })
	g.Go(func() error { return driver.Run(gctx) })

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		g.Go(func() error { return serveHTTP(gctx, cfg.MetricsAddr, mux, logger) })
	}
	if outputs.Broadcaster != nil {
		mux := http.NewServeMux()
		mux.Handle("/trades", outputs.Broadcaster.Handler())
		g.Go(func() error { return serveHTTP(gctx, cfg.BroadcastAddr, mux, logger) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("monitor stopped")
	return nil
}

// serveHTTP runs srv until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
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
