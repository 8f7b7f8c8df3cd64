package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every request with result, recording the last request.
func rpcServer(t *testing.T, result interface{}, last *rpcRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if last != nil {
			*last = req
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestHTTPClient_SimulateTransaction(t *testing.T) {
	var req rpcRequest
	server := rpcServer(t, map[string]interface{}{
		"context": map[string]interface{}{"slot": 42},
		"value": map[string]interface{}{
			"err":          nil,
			"logs":         []string{"Program log: ok"},
			"preBalances":  []uint64{5_000_000_000, 1},
			"postBalances": []uint64{3_000_000_000, 1},
			"preTokenBalances": []map[string]interface{}{
				{
					"accountIndex":  3,
					"mint":          "MintA",
					"owner":         "OwnerA",
					"uiTokenAmount": map[string]interface{}{"amount": "100", "decimals": 6, "uiAmountString": "0.0001"},
				},
			},
			"postTokenBalances": []map[string]interface{}{
				{
					"accountIndex":  3,
					"mint":          "MintA",
					"owner":         "OwnerA",
					"uiTokenAmount": map[string]interface{}{"amount": "1000000100", "decimals": 6},
				},
			},
		},
	}, &req)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	raw := []byte{1, 2, 3, 4}

	snap, err := client.SimulateTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}

	if req.Method != "simulateTransaction" {
		t.Errorf("expected method simulateTransaction, got %s", req.Method)
	}
	if len(req.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(req.Params))
	}
	if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
		t.Errorf("expected base64 transaction param, got %v", req.Params[0])
	}
	opts, ok := req.Params[1].(map[string]interface{})
	if !ok {
		t.Fatalf("expected options object, got %T", req.Params[1])
	}
	if opts["encoding"] != "base64" || opts["sigVerify"] != false ||
		opts["replaceRecentBlockhash"] != true || opts["commitment"] != "processed" {
		t.Errorf("unexpected simulate options: %v", opts)
	}

	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if len(snap.PreBalances) != 2 || snap.PreBalances[0] != 5_000_000_000 {
		t.Errorf("unexpected pre balances: %v", snap.PreBalances)
	}
	if len(snap.PostBalances) != 2 || snap.PostBalances[0] != 3_000_000_000 {
		t.Errorf("unexpected post balances: %v", snap.PostBalances)
	}
	if len(snap.PostTokenBalances) != 1 {
		t.Fatalf("expected 1 post token balance, got %d", len(snap.PostTokenBalances))
	}
	post := snap.PostTokenBalances[0]
	if post.AccountIndex != 3 || post.Owner != "OwnerA" || post.Mint != "MintA" ||
		post.Amount != "1000000100" || post.Decimals != 6 {
		t.Errorf("unexpected post token balance: %+v", post)
	}
	if len(snap.PreTokenBalances) != 1 || snap.PreTokenBalances[0].Amount != "100" {
		t.Errorf("unexpected pre token balances: %+v", snap.PreTokenBalances)
	}
}

func TestHTTPClient_SimulateTransaction_NullValue(t *testing.T) {
	server := rpcServer(t, map[string]interface{}{
		"context": map[string]interface{}{"slot": 42},
		"value":   nil,
	}, nil)
	defer server.Close()

	snap, err := NewHTTPClient(server.URL).SimulateTransaction(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestHTTPClient_SimulateTransaction_SimulationError(t *testing.T) {
	server := rpcServer(t, map[string]interface{}{
		"context": map[string]interface{}{"slot": 42},
		"value": map[string]interface{}{
			"err":          map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
			"preBalances":  []uint64{1},
			"postBalances": []uint64{1},
		},
	}, nil)
	defer server.Close()

	snap, err := NewHTTPClient(server.URL).SimulateTransaction(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot for failed simulation, got %+v", snap)
	}
}

func TestHTTPClient_SimulateTransaction_MissingUIAmount(t *testing.T) {
	server := rpcServer(t, map[string]interface{}{
		"value": map[string]interface{}{
			"err":               nil,
			"postTokenBalances": []map[string]interface{}{{"accountIndex": 1, "mint": "MintA", "owner": "OwnerA"}},
		},
	}, nil)
	defer server.Close()

	snap, err := NewHTTPClient(server.URL).SimulateTransaction(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if snap == nil || len(snap.PostTokenBalances) != 1 {
		t.Fatalf("expected one post token balance, got %+v", snap)
	}
	if snap.PostTokenBalances[0].Amount != "" {
		t.Errorf("expected empty amount, got %q", snap.PostTokenBalances[0].Amount)
	}
	if snap.PreBalances != nil || snap.PostBalances != nil {
		t.Errorf("expected absent lamport arrays, got %v / %v", snap.PreBalances, snap.PostBalances)
	}
}

func TestHTTPClient_GetSlot(t *testing.T) {
	var req rpcRequest
	server := rpcServer(t, int64(123456), &req)
	defer server.Close()

	slot, err := NewHTTPClient(server.URL).GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if req.Method != "getSlot" {
		t.Errorf("expected method getSlot, got %s", req.Method)
	}
	if slot != 123456 {
		t.Errorf("expected slot 123456, got %d", slot)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	if _, err := client.SimulateTransaction(context.Background(), []byte{1}); err == nil {
		t.Fatal("expected error after retries")
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid transaction"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	_, err := client.SimulateTransaction(context.Background(), []byte{1})
	if err == nil {
		t.Fatal("expected RPC error")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected *rpcError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewHTTPClient(server.URL, WithMaxRetries(0))
	if _, err := client.GetSlot(ctx); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
