package main

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mempool-flow/internal/config"
	"mempool-flow/internal/sink"
	chstore "mempool-flow/internal/storage/clickhouse"
	"mempool-flow/internal/storage/migrations"
	pgstore "mempool-flow/internal/storage/postgres"
)

// outputs holds the fan-out sink and everything that must be closed with it.
type outputs struct {
	Sink        *sink.Multi
	Broadcaster *sink.Broadcaster

	named   []sink.Named
	closers []func()
}

// Names lists the enabled sinks.
func (o *outputs) Names() []string {
	names := make([]string, len(o.named))
	for i, n := range o.named {
		names[i] = n.Name
	}
	return names
}

// Close releases connections in reverse order of creation.
func (o *outputs) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
}

// buildSinks wires the console sink plus every output enabled in cfg.
// Stores are migrated before use; an unreachable store is a startup error.
func buildSinks(ctx context.Context, cfg config.Config, mint string, out io.Writer, logger *zap.Logger) (*outputs, error) {
	o := &outputs{}
	o.named = append(o.named, sink.Named{Name: "console", Sink: sink.NewConsole(out)})

	if cfg.BroadcastAddr != "" {
		o.Broadcaster = sink.NewBroadcaster(mint, logger)
		o.closers = append(o.closers, o.Broadcaster.CloseAll)
		o.named = append(o.named, sink.Named{Name: "broadcast", Sink: o.Broadcaster})
	}

	if len(cfg.KafkaBrokers) > 0 {
		k := sink.NewKafka(mint, sink.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		o.closers = append(o.closers, func() {
			if err := k.Close(); err != nil {
				logger.Warn("close kafka writer", zap.Error(err))
			}
		})
		o.named = append(o.named, sink.Named{Name: "kafka", Sink: k, Timeout: sink.DefaultRemoteTimeout})
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			o.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		o.closers = append(o.closers, func() { client.Close() })
		o.named = append(o.named, sink.Named{Name: "redis", Sink: sink.NewRedis(client, mint, cfg.RedisChannel, 0), Timeout: sink.DefaultRemoteTimeout})
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		o.closers = append(o.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			o.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		o.named = append(o.named, sink.Named{Name: "postgres", Sink: sink.NewStore(mint, pgstore.NewTradeStore(pool)), Timeout: sink.DefaultRemoteTimeout})
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		o.closers = append(o.closers, func() { conn.Close() })
		o.named = append(o.named, sink.Named{Name: "clickhouse", Sink: sink.NewStore(mint, chstore.NewTradeStore(conn)), Timeout: sink.DefaultRemoteTimeout})
	}

	o.Sink = sink.NewMulti(logger, o.named...)
	return o, nil
}
