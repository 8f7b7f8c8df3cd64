// Package config merges flags, environment, .env and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MEMPOOL_FLOW_RPC_URL.
const EnvPrefix = "MEMPOOL_FLOW"

// Defaults shared by flag registration and Load.
const (
	DefaultRPCURL             = "https://api.mainnet-beta.solana.com"
	DefaultSubscribeMethod    = "pendingTransactionSubscribe"
	DefaultNotificationMethod = "pendingTransactionNotification"
	DefaultKeypair            = "./auth.json"
	DefaultPriceURL           = "https://api.binance.com"
	DefaultPriceSymbol        = "SOLUSDT"
	DefaultPriceInterval      = 15 * time.Second
	DefaultFlushInterval      = 200 * time.Millisecond
	DefaultRPCTimeout         = 10 * time.Second
	DefaultRPCMaxRetries      = 1
	DefaultKafkaTopic         = "mempool-flow.trades"
	DefaultRedisChannel       = "mempool-flow:trades"
	DefaultLogLevel           = "info"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	WSURL              string
	SubscribeMethod    string
	NotificationMethod string
	Keypair            string
	PriceURL           string
	PriceSymbol        string
	PriceInterval      time.Duration
	FlushInterval      time.Duration
	RPCTimeout         time.Duration
	RPCMaxRetries      int
	MetricsAddr        string
	BroadcastAddr      string
	KafkaBrokers       []string
	KafkaTopic         string
	RedisAddr          string
	RedisChannel       string
	PostgresDSN        string
	ClickhouseDSN      string
	LogLevel           string
	Debug              bool
}

// RegisterFlags declares every monitor flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", DefaultRPCURL, "JSON-RPC endpoint used for simulateTransaction")
	fs.String("ws-url", "", "websocket endpoint streaming pending transactions")
	fs.String("subscribe-method", DefaultSubscribeMethod, "JSON-RPC method opening the pending transaction subscription")
	fs.String("notification-method", DefaultNotificationMethod, "JSON-RPC method carrying pending transaction notifications")
	fs.String("keypair", DefaultKeypair, "auth keypair path, generated when missing")
	fs.String("price-url", DefaultPriceURL, "SOL/USD ticker base URL")
	fs.String("price-symbol", DefaultPriceSymbol, "SOL/USD ticker symbol")
	fs.Duration("price-interval", DefaultPriceInterval, "SOL/USD refresh interval")
	fs.Duration("flush-interval", DefaultFlushInterval, "minimum spacing between sink flushes")
	fs.Duration("rpc-timeout", DefaultRPCTimeout, "per-request RPC timeout")
	fs.Int("rpc-max-retries", DefaultRPCMaxRetries, "RPC retries on transient failures")
	fs.String("metrics-addr", "", "serve /metrics and /health on this address (disabled when empty)")
	fs.String("broadcast-addr", "", "serve a websocket trade feed on this address (disabled when empty)")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers (comma-separated); enables the Kafka sink")
	fs.String("kafka-topic", DefaultKafkaTopic, "Kafka topic for trades")
	RegisterStorageFlags(fs)
}

// RegisterStorageFlags declares the trade history backends and logging flags,
// the subset shared by commands that only read stored trades.
func RegisterStorageFlags(fs *pflag.FlagSet) {
	fs.String("redis-addr", "", "Redis address; enables the Redis sink")
	fs.String("redis-channel", DefaultRedisChannel, "Redis pub/sub channel for trades")
	fs.String("postgres-dsn", "", "Postgres DSN; enables the Postgres trade store")
	fs.String("clickhouse-dsn", "", "ClickHouse DSN; enables the ClickHouse trade store")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.Bool("debug", false, "shorthand for --log-level=debug")
}

// Load merges .env, config file, environment variables, and flags into Config.
// A missing .env or default config file is not an error.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-url", DefaultRPCURL)
	v.SetDefault("subscribe-method", DefaultSubscribeMethod)
	v.SetDefault("notification-method", DefaultNotificationMethod)
	v.SetDefault("keypair", DefaultKeypair)
	v.SetDefault("price-url", DefaultPriceURL)
	v.SetDefault("price-symbol", DefaultPriceSymbol)
	v.SetDefault("price-interval", DefaultPriceInterval)
	v.SetDefault("flush-interval", DefaultFlushInterval)
	v.SetDefault("rpc-timeout", DefaultRPCTimeout)
	v.SetDefault("rpc-max-retries", DefaultRPCMaxRetries)
	v.SetDefault("kafka-topic", DefaultKafkaTopic)
	v.SetDefault("redis-channel", DefaultRedisChannel)
	v.SetDefault("log-level", DefaultLogLevel)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("mempool-flow")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc-url"),
		WSURL:              v.GetString("ws-url"),
		SubscribeMethod:    v.GetString("subscribe-method"),
		NotificationMethod: v.GetString("notification-method"),
		Keypair:            v.GetString("keypair"),
		PriceURL:           v.GetString("price-url"),
		PriceSymbol:        v.GetString("price-symbol"),
		PriceInterval:      v.GetDuration("price-interval"),
		FlushInterval:      v.GetDuration("flush-interval"),
		RPCTimeout:         v.GetDuration("rpc-timeout"),
		RPCMaxRetries:      v.GetInt("rpc-max-retries"),
		MetricsAddr:        v.GetString("metrics-addr"),
		BroadcastAddr:      v.GetString("broadcast-addr"),
		KafkaBrokers:       getStringSlice(v, "kafka-brokers"),
		KafkaTopic:         v.GetString("kafka-topic"),
		RedisAddr:          v.GetString("redis-addr"),
		RedisChannel:       v.GetString("redis-channel"),
		PostgresDSN:        v.GetString("postgres-dsn"),
		ClickhouseDSN:      v.GetString("clickhouse-dsn"),
		LogLevel:           v.GetString("log-level"),
		Debug:              v.GetBool("debug"),
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// Validate checks the values the monitor cannot start without.
func (c Config) Validate() error {
	if err := checkURL("rpc-url", c.RPCURL, "http", "https"); err != nil {
		return err
	}
	if c.WSURL == "" {
		return errors.New("ws-url is required")
	}
	if err := checkURL("ws-url", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("price-url", c.PriceURL, "http", "https"); err != nil {
		return err
	}
	if c.Keypair == "" {
		return errors.New("keypair path is required")
	}
	if c.SubscribeMethod == "" || c.NotificationMethod == "" {
		return errors.New("subscribe and notification methods are required")
	}
	if c.PriceInterval <= 0 {
		return fmt.Errorf("price-interval must be positive, got %s", c.PriceInterval)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush-interval must be positive, got %s", c.FlushInterval)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc-timeout must be positive, got %s", c.RPCTimeout)
	}
	if c.RPCMaxRetries < 0 {
		return fmt.Errorf("rpc-max-retries must not be negative, got %d", c.RPCMaxRetries)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka-topic is required when kafka-brokers is set")
	}
	if c.RedisAddr != "" && c.RedisChannel == "" {
		return errors.New("redis-channel is required when redis-addr is set")
	}
	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: expected %s URL, got %q", name, strings.Join(schemes, "/"), raw)
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
