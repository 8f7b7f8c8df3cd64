package solana

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/stream"
)

// PendingTxFeed opens websocket subscriptions to a pending transaction feed.
type PendingTxFeed struct {
	endpoint string
	config   WSClientConfig
	filter   PendingTxFilter
	headers  func() (http.Header, error)
	logger   *zap.Logger
}

// Compile-time interface check.
var _ stream.Subscription = (*PendingTxFeed)(nil)

// NewPendingTxFeed creates a feed. headers is called on every connect so auth
// material such as signed timestamps is fresh; it may be nil.
func NewPendingTxFeed(endpoint string, config WSClientConfig, filter PendingTxFilter, headers func() (http.Header, error), logger *zap.Logger) *PendingTxFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingTxFeed{
		endpoint: endpoint,
		config:   config,
		filter:   filter,
		headers:  headers,
		logger:   logger,
	}
}

// Connect dials the endpoint and subscribes.
func (f *PendingTxFeed) Connect(ctx context.Context) (stream.Stream, error) {
	cfg := f.config
	if f.headers != nil {
		h, err := f.headers()
		if err != nil {
			return nil, err
		}
		cfg.Header = h
	}

	client, err := NewWSClient(ctx, f.endpoint, &cfg, f.logger)
	if err != nil {
		return nil, err
	}

	ch, err := client.SubscribePendingTransactions(ctx, f.filter)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &wsStream{client: client, ch: ch}, nil
}

type wsStream struct {
	client *WSClientImpl
	ch     <-chan domain.NotificationBatch
}

func (s *wsStream) Notifications() <-chan domain.NotificationBatch { return s.ch }

func (s *wsStream) Err() error { return s.client.Err() }

func (s *wsStream) Close() error { return s.client.Close() }
