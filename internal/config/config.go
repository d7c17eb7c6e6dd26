// Package config loads the node's environment-keyed settings. Invalid
// values are a fatal ConfigError at startup, never a retryable one.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

// Config is the fully resolved, validated settings surface for one process.
type Config struct {
	Symbols      []string
	Intervals    []string
	QuoteAssets  []string

	DBURL      string
	DBPoolSize int

	CacheURL          string
	CacheTTLSecKlines int

	BinanceBase string

	EnableFetcher   bool
	EnableAggregator bool
	FetchConcurrency int

	InitBackfillDays int
	BackfillPull4h   bool
	InitPull4h       *int
	InitPull1m       *int

	LogLevel string
}

// Load reads Config from the process environment, applying defaults.
func Load() (*Config, error) {
	c := &Config{
		Symbols:          csv(envOr("SYMBOLS", "BTCUSDT,ETHUSDT")),
		Intervals:        csv(envOr("INTERVALS", "1m,3m,5m,15m,1h,4h,1d")),
		QuoteAssets:      csv(envOr("QUOTE_ASSETS", "USDT")),
		DBURL:            envOr("DB_URL", "sqlite:///data/klines.db"),
		CacheURL:         os.Getenv("CACHE_URL"),
		BinanceBase:      envOr("BINANCE_BASE", "https://fapi.binance.com"),
		LogLevel:         envOr("LOG_LEVEL", "INFO"),
	}

	var err error
	if c.DBPoolSize, err = envInt("DB_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if c.CacheTTLSecKlines, err = envInt("CACHE_TTL_SEC_KLINES", 10); err != nil {
		return nil, err
	}
	if c.EnableFetcher, err = envBool("ENABLE_FETCHER", true); err != nil {
		return nil, err
	}
	if c.EnableAggregator, err = envBool("ENABLE_AGGREGATOR", true); err != nil {
		return nil, err
	}
	if c.FetchConcurrency, err = envInt("FETCH_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if c.InitBackfillDays, err = envInt("INIT_BACKFILL_DAYS", 0); err != nil {
		return nil, err
	}
	if c.BackfillPull4h, err = envBool("BACKFILL_PULL_4H", false); err != nil {
		return nil, err
	}
	if c.InitPull4h, err = envIntPtr("INIT_PULL_4H"); err != nil {
		return nil, err
	}
	if c.InitPull1m, err = envIntPtr("INIT_PULL_1M"); err != nil {
		return nil, err
	}

	if len(c.Symbols) == 0 {
		return nil, fmt.Errorf("%w: SYMBOLS must not be empty", klerrors.ErrConfig)
	}
	if c.DBPoolSize < 1 {
		return nil, fmt.Errorf("%w: DB_POOL_SIZE must be >= 1", klerrors.ErrConfig)
	}
	if c.FetchConcurrency < 1 {
		return nil, fmt.Errorf("%w: FETCH_CONCURRENCY must be >= 1", klerrors.ErrConfig)
	}
	return c, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer: %v", klerrors.ErrConfig, key, v, err)
	}
	return n, nil
}

func envIntPtr(key string) (*int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not an integer: %v", klerrors.ErrConfig, key, v, err)
	}
	return &n, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a bool: %v", klerrors.ErrConfig, key, v, err)
	}
	return b, nil
}
