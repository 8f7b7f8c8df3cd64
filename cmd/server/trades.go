package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mempool-flow/internal/sink"
	"mempool-flow/internal/solana"
	"mempool-flow/internal/storage"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// historySource returns up to limit trades for mint, newest first.
type historySource func(ctx context.Context, mint string, limit int) ([]sink.TradeMessage, error)

func storeHistory(store storage.TradeStore) historySource {
	return func(ctx context.Context, mint string, limit int) ([]sink.TradeMessage, error) {
		records, err := store.GetRecent(ctx, mint, limit)
		if err != nil {
			return nil, err
		}
		msgs := make([]sink.TradeMessage, len(records))
		for i, r := range records {
			msgs[i] = sink.NewTradeMessage(r.Mint, r.Trade)
		}
		return msgs, nil
	}
}

func redisHistory(client redis.UniversalClient, channel string) historySource {
	return func(ctx context.Context, mint string, limit int) ([]sink.TradeMessage, error) {
		return sink.NewRedis(client, mint, channel, 0).Recent(ctx, limit)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func tradesHandler(source historySource, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		mint := r.URL.Query().Get("mint")
		if !solana.IsPubkey(mint) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mint must be a base58 public key"})
			return
		}

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxLimit)
		}

		msgs, err := source(r.Context(), mint, limit)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidInput) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			logger.Error("load trades", zap.String("mint", mint), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load trades"})
			return
		}
		if msgs == nil {
			msgs = []sink.TradeMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
