// Package upstream talks to the exchange's /fapi/v1/klines endpoint, with
// per-host rate limiting, a circuit breaker, and bounded retry with
// exponential backoff.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/model"
)

const (
	maxAttempts  = 5
	baseBackoff  = 500 * time.Millisecond
	maxBackoff   = 6 * time.Second
	klinesPath   = "/fapi/v1/klines"
	maxKlinesReq = 1500
)

// Client fetches raw klines for one symbol/timeframe window.
type Client interface {
	FetchKlines(ctx context.Context, symbol string, tf model.Timeframe, startMs, endMs *int64, limit int) ([]model.Bar, error)
}

// HTTPClient is the production Client: one *http.Client, one rate limiter
// and circuit breaker per host, shared across all symbols and timeframes
// (grounded on sawpanic-cryptorun's infrastructure/providers/binance.go).
type HTTPClient struct {
	base    string
	hc      *http.Client
	limiter *hostLimiter
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPClient builds a Client against baseURL, configured from BINANCE_BASE.
func NewHTTPClient(baseURL string) *HTTPClient {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &HTTPClient{
		base:    baseURL,
		hc:      &http.Client{Timeout: 15 * time.Second},
		limiter: newHostLimiter(8, 16),
		breaker: newBreaker(host),
	}
}

func (c *HTTPClient) FetchKlines(ctx context.Context, symbol string, tf model.Timeframe, startMs, endMs *int64, limit int) ([]model.Bar, error) {
	if limit <= 0 || limit > maxKlinesReq {
		limit = maxKlinesReq
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", tf.String())
	q.Set("limit", strconv.Itoa(limit))
	if startMs != nil {
		q.Set("startTime", strconv.FormatInt(*startMs, 10))
	}
	if endMs != nil {
		q.Set("endTime", strconv.FormatInt(*endMs, 10))
	}
	reqURL := c.base + klinesPath + "?" + q.Encode()

	var body []byte
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", klerrors.ErrUpstream, ctx.Err())
			case <-time.After(delay):
			}
		}
		if err := c.limiter.wait(ctx, c.base); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", klerrors.ErrUpstream, err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, reqURL)
		})
		if err == nil {
			body = result.([]byte)
			lastErr = nil
			break
		}
		lastErr = err
		if errors.Is(err, klerrors.ErrProtocol) {
			// A 4xx other than 429 is a client-side error, not a transient
			// one; retrying it would just repeat the same rejection.
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", klerrors.ErrUpstream, klinesPath, lastErr)
	}

	return parseKlines(symbol, tf, body)
}

func (c *HTTPClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d: %s", klerrors.ErrProtocol, resp.StatusCode, body)
	}
	return body, nil
}

func backoffDelay(attempt int) time.Duration {
	d := baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// parseKlines decodes the exchange's 12-element nested-array kline format
// back into domain Bars.
func parseKlines(symbol string, tf model.Timeframe, body []byte) ([]model.Bar, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode klines response: %v", klerrors.ErrProtocol, err)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 11 {
			return nil, fmt.Errorf("%w: kline row has %d fields, want >= 11", klerrors.ErrProtocol, len(row))
		}
		b := model.Bar{Symbol: symbol, Timeframe: tf, IsFinal: true}
		var err error
		if b.OpenTime, err = asInt64(row[0]); err != nil {
			return nil, protoErr("open_time", err)
		}
		if b.Open, err = asFloat(row[1]); err != nil {
			return nil, protoErr("open", err)
		}
		if b.High, err = asFloat(row[2]); err != nil {
			return nil, protoErr("high", err)
		}
		if b.Low, err = asFloat(row[3]); err != nil {
			return nil, protoErr("low", err)
		}
		if b.Close, err = asFloat(row[4]); err != nil {
			return nil, protoErr("close", err)
		}
		if b.Volume, err = asFloat(row[5]); err != nil {
			return nil, protoErr("volume", err)
		}
		if b.CloseTime, err = asInt64(row[6]); err != nil {
			return nil, protoErr("close_time", err)
		}
		if b.QuoteVolume, err = asFloat(row[7]); err != nil {
			return nil, protoErr("quote_volume", err)
		}
		if b.Trades, err = asInt64(row[8]); err != nil {
			return nil, protoErr("trades", err)
		}
		if b.TakerBuyBase, err = asFloat(row[9]); err != nil {
			return nil, protoErr("taker_buy_base", err)
		}
		if b.TakerBuyQuote, err = asFloat(row[10]); err != nil {
			return nil, protoErr("taker_buy_quote", err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func protoErr(field string, err error) error {
	return fmt.Errorf("%w: kline field %s: %v", klerrors.ErrProtocol, field, err)
}

func asFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

func asInt64(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}
