package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
)

// Default subscription method names.
const (
	DefaultSubscribeMethod    = "pendingTransactionSubscribe"
	DefaultNotificationMethod = "pendingTransactionNotification"
)

// ErrClientClosed is returned by operations on a closed client.
var ErrClientClosed = errors.New("client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// SubscribeMethod is the JSON-RPC method used to subscribe.
	SubscribeMethod string
	// NotificationMethod is the method name carried by notifications.
	NotificationMethod string
	// Header is sent with the handshake (auth headers).
	Header http.Header
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// SubscribeTimeout bounds the wait for subscription confirmation.
	SubscribeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		SubscribeMethod:    DefaultSubscribeMethod,
		NotificationMethod: DefaultNotificationMethod,
		HandshakeTimeout:   10 * time.Second,
		SubscribeTimeout:   30 * time.Second,
		PingInterval:       30 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
// A client serves one connection; callers reconnect by creating a new client.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subID         atomic.Int64
	notifications chan domain.NotificationBatch

	// pendingSubs maps request ID to channel waiting for subscription result
	pendingSubs   map[uint64]chan subscribeResult
	pendingSubsMu sync.Mutex

	errMu sync.Mutex
	err   error

	done chan struct{}
	wg   sync.WaitGroup
}

type subscribeResult struct {
	id  int64
	err error
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger *zap.Logger) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeMethod == "" {
		cfg.SubscribeMethod = DefaultSubscribeMethod
	}
	if cfg.NotificationMethod == "" {
		cfg.NotificationMethod = DefaultNotificationMethod
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint:      endpoint,
		config:        cfg,
		logger:        logger,
		notifications: make(chan domain.NotificationBatch, 256),
		pendingSubs:   make(map[uint64]chan subscribeResult),
		done:          make(chan struct{}),
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	if cfg.ReadTimeout > 0 {
		// A filtered feed can stay silent for long stretches; pongs keep it alive.
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		})
	}

	c.wg.Add(1)
	go c.readLoop()

	if cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}

	return c, nil
}

// SubscribePendingTransactions subscribes to pending transactions matching the filter.
func (c *WSClientImpl) SubscribePendingTransactions(ctx context.Context, filter PendingTxFilter) (<-chan domain.NotificationBatch, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	reqID := c.requestID.Add(1)

	accounts := filter.Accounts
	if accounts == nil {
		accounts = []string{}
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  c.config.SubscribeMethod,
		Params: []interface{}{
			map[string]interface{}{
				"accounts": accounts,
				"encoding": "base64",
			},
		},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		c.dropPending(reqID)
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case res, ok := <-confirmCh:
		if !ok {
			return nil, ErrClientClosed
		}
		if res.err != nil {
			return nil, res.err
		}
		c.subID.Store(res.id)
	case <-time.After(c.config.SubscribeTimeout):
		c.dropPending(reqID)
		return nil, fmt.Errorf("subscription timeout after %v", c.config.SubscribeTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		c.dropPending(reqID)
		return nil, ctx.Err()
	}

	return c.notifications, nil
}

func (c *WSClientImpl) dropPending(reqID uint64) {
	c.pendingSubsMu.Lock()
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()
}

// Err returns the error that terminated the connection, if any.
func (c *WSClientImpl) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *WSClientImpl) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.connMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages until the connection fails, then closes the
// notification channel. It does not reconnect.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()
	defer close(c.notifications)

	for {
		if c.config.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.setErr(ErrClientClosed)
				return
			}
			c.setErr(fmt.Errorf("websocket read: %w", err))
			c.failPending(err)
			return
		}

		c.handleMessage(message)
	}
}

// failPending unblocks subscribers still waiting for confirmation.
func (c *WSClientImpl) failPending(err error) {
	c.pendingSubsMu.Lock()
	defer c.pendingSubsMu.Unlock()
	for id, ch := range c.pendingSubs {
		select {
		case ch <- subscribeResult{err: fmt.Errorf("connection lost: %w", err)}:
		default:
		}
		delete(c.pendingSubs, id)
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.ID != 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == c.config.NotificationMethod {
		c.handleNotification(&notif)
		return
	}

	c.logger.Debug("ignoring websocket message", zap.Int("bytes", len(message)))
}

// handleSubscribeResponse handles subscription confirmation or rejection.
func (c *WSClientImpl) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if !ok {
		return
	}

	res := subscribeResult{}
	switch {
	case resp.Error != nil:
		res.err = fmt.Errorf("subscribe rejected: code=%d msg=%s", resp.Error.Code, resp.Error.Message)
	case resp.Result == nil:
		res.err = fmt.Errorf("subscribe response without result")
	default:
		res.id = *resp.Result
	}

	select {
	case ch <- res:
	default:
	}
}

// handleNotification decodes the packets of one notification and forwards them.
// Undecodable packets are dropped; the rest keep their order.
func (c *WSClientImpl) handleNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}
	if sub := c.subID.Load(); sub != 0 && notif.Params.Subscription != sub {
		return
	}

	batch := domain.NotificationBatch{
		Transactions: make([]domain.PendingTransaction, 0, len(notif.Params.Result.Value.Transactions)),
	}
	if notif.Params.Result.Context != nil {
		batch.Slot = notif.Params.Result.Context.Slot
	}

	for i, packet := range notif.Params.Result.Value.Transactions {
		tx, err := DecodeBase64Transaction(packet)
		if err != nil {
			observability.RecordDecodeError()
			c.logger.Debug("drop undecodable packet", zap.Int("index", i), zap.Error(err))
			continue
		}
		batch.Transactions = append(batch.Transactions, *tx)
	}

	select {
	case c.notifications <- batch:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  *int64    `json:"result"` // subscription ID
	Error   *rpcError `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *rpcContext    `json:"context"`
	Value   wsPendingValue `json:"value"`
}

type wsPendingValue struct {
	Transactions []string `json:"transactions"`
}
