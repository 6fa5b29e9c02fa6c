package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/quantbench/internal/models"
)

// RESTProvider fetches historical candles from an OHLCV REST API. Exchange
// APIs commonly deliver prices as strings; fields are parsed through
// decimal before converting to float64.
type RESTProvider struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	logger     *log.Logger
}

// restCandle is one candle as returned by the API.
type restCandle struct {
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
}

// NewRESTProvider creates a candle provider for the given API endpoint.
func NewRESTProvider(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *log.Logger) *RESTProvider {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RESTProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Name returns the provider name.
func (p *RESTProvider) Name() string {
	return "rest"
}

// GetCandles retrieves candles for one symbol in ascending timestamp order.
func (p *RESTProvider) GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	url := fmt.Sprintf("%s/candles?symbol=%s&interval=%s&start=%d&end=%d",
		p.baseURL, symbol, string(timeframe), start.UnixMilli(), end.UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "failed to create request", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "failed to fetch candles", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewProviderError(p.Name(), ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no data for symbol %s", symbol), nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewProviderError(p.Name(), ErrCodeServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var raw []restCandle
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to parse response", err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, rc := range raw {
		candle, err := rc.toCandle()
		if err != nil {
			return nil, NewProviderError(p.Name(), ErrCodeInvalidData, fmt.Sprintf("malformed candle for %s", symbol), err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func (rc restCandle) toCandle() (models.Candle, error) {
	open, err := parsePrice(rc.Open)
	if err != nil {
		return models.Candle{}, err
	}
	high, err := parsePrice(rc.High)
	if err != nil {
		return models.Candle{}, err
	}
	low, err := parsePrice(rc.Low)
	if err != nil {
		return models.Candle{}, err
	}
	closePrice, err := parsePrice(rc.Close)
	if err != nil {
		return models.Candle{}, err
	}
	volume, err := parsePrice(rc.Volume)
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{
		Timestamp: time.UnixMilli(rc.Timestamp).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric field %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
