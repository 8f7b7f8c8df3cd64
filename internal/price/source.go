package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Defaults for the Binance ticker source.
const (
	DefaultBinanceURL = "https://api.binance.com"
	DefaultSymbol     = "SOLUSDT"
	DefaultTimeout    = 5 * time.Second
)

// ErrInvalidPrice is returned when a source yields a non-positive or unparsable price.
var ErrInvalidPrice = errors.New("invalid price")

// Source fetches the latest SOL price in the display currency.
type Source interface {
	Fetch(ctx context.Context) (float64, error)
}

// BinanceSource reads a symbol from the Binance public ticker endpoint.
type BinanceSource struct {
	baseURL string
	symbol  string
	client  *http.Client
}

// SourceOption configures BinanceSource.
type SourceOption func(*BinanceSource)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *BinanceSource) {
		s.client = client
	}
}

// WithSymbol sets the ticker symbol.
func WithSymbol(symbol string) SourceOption {
	return func(s *BinanceSource) {
		s.symbol = symbol
	}
}

// NewBinanceSource creates a ticker source rooted at baseURL.
func NewBinanceSource(baseURL string, opts ...SourceOption) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	s := &BinanceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		symbol:  DefaultSymbol,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Fetch performs GET /api/v3/ticker/price?symbol=<symbol>.
func (s *BinanceSource) Fetch(ctx context.Context) (float64, error) {
	endpoint := s.baseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(s.symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var ticker tickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("unmarshal ticker: %w", err)
	}

	p, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, ticker.Price)
	}
	if p <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, p)
	}
	return p, nil
}
