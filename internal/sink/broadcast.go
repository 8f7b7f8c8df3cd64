package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mempool-flow/internal/domain"
)

const broadcastWriteTimeout = 5 * time.Second

// Broadcaster pushes each trade as a JSON text frame to every connected
// websocket client.
type Broadcaster struct {
	mint     string
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewBroadcaster creates a broadcaster for trades of mint.
func NewBroadcaster(mint string, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		mint:     mint,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Emit writes every trade to every client. Clients that fail a write are dropped.
func (b *Broadcaster) Emit(_ context.Context, trades []domain.InferredTrade) error {
	if len(trades) == 0 {
		return nil
	}

	frames := make([][]byte, 0, len(trades))
	for _, t := range trades {
		data, err := json.Marshal(NewTradeMessage(b.mint, t))
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}
		frames = append(frames, data)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		for _, f := range frames {
			_ = c.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
			if err := c.WriteMessage(websocket.TextMessage, f); err != nil {
				b.logger.Debug("broadcast client dropped", zap.Error(err))
				c.Close()
				delete(b.clients, c)
				break
			}
		}
	}
	return nil
}

// Handler accepts websocket clients. Incoming frames are read and discarded
// so close and ping control frames are processed.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// CloseAll disconnects every client.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.Close()
		delete(b.clients, c)
	}
}
