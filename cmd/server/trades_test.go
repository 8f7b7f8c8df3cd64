package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mempool-flow/internal/config"
	"mempool-flow/internal/domain"
	"mempool-flow/internal/sink"
	"mempool-flow/internal/storage"
)

const testMint = "So11111111111111111111111111111111111111112"

type fakeStore struct {
	records   []storage.TradeRecord
	err       error
	lastMint  string
	lastLimit int
}

func (f *fakeStore) InsertBulk(context.Context, []storage.TradeRecord) error { return nil }

func (f *fakeStore) GetRecent(_ context.Context, mint string, limit int) ([]storage.TradeRecord, error) {
	f.lastMint, f.lastLimit = mint, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestTradesHandler_ReturnsStoredTrades(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []storage.TradeRecord{
		{Mint: testMint, Trade: domain.InferredTrade{Time: ts, Side: domain.SideBuy, SOL: 1, Token: 1000, PriceSOL: 0.001, PriceUSD: 0.15, Signature: "sigB"}},
		{Mint: testMint, Trade: domain.InferredTrade{Time: ts.Add(-time.Second), Side: domain.SideSell, SOL: 0.5, Token: 250, PriceSOL: 0.002, Signature: "sigA"}},
	}}

	rec := get(t, tradesHandler(storeHistory(store), zap.NewNop()), "/trades?mint="+testMint+"&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []sink.TradeMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "sigB", got[0].Signature)
	assert.Equal(t, "Buy", got[0].Side)
	assert.Equal(t, "Sell", got[1].Side)
	assert.Equal(t, testMint, store.lastMint)
	assert.Equal(t, 2, store.lastLimit)
}

func TestTradesHandler_DefaultAndCappedLimit(t *testing.T) {
	store := &fakeStore{}
	h := tradesHandler(storeHistory(store), zap.NewNop())

	rec := get(t, h, "/trades?mint="+testMint)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, defaultLimit, store.lastLimit)

	get(t, h, "/trades?mint="+testMint+"&limit=50000")
	assert.Equal(t, maxLimit, store.lastLimit)
}

func TestTradesHandler_BadRequests(t *testing.T) {
	h := tradesHandler(storeHistory(&fakeStore{}), zap.NewNop())

	tests := []struct {
		name   string
		target string
	}{
		{"missing mint", "/trades"},
		{"invalid mint", "/trades?mint=not-a-key"},
		{"zero limit", "/trades?mint=" + testMint + "&limit=0"},
		{"non-numeric limit", "/trades?mint=" + testMint + "&limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTradesHandler_MethodNotAllowed(t *testing.T) {
	h := tradesHandler(storeHistory(&fakeStore{}), zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trades?mint="+testMint, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTradesHandler_StoreError(t *testing.T) {
	h := tradesHandler(storeHistory(&fakeStore{err: errors.New("connection reset")}), zap.NewNop())
	rec := get(t, h, "/trades?mint="+testMint)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestOpenHistory_RequiresBackend(t *testing.T) {
	_, _, _, err := openHistory(context.Background(), config.Config{})
	assert.Error(t, err)
}

func TestRootCmd_OnlyStorageFlags(t *testing.T) {
	flags := newRootCmd().Flags()
	for _, name := range []string{"addr", "config", "postgres-dsn", "clickhouse-dsn", "redis-addr", "redis-channel", "log-level", "debug"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
	for _, name := range []string{"ws-url", "rpc-url", "price-url", "kafka-brokers", "keypair", "flush-interval"} {
		assert.Nil(t, flags.Lookup(name), name)
	}
}
