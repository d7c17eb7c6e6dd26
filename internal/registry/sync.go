package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

type exchangeInfoResponse struct {
	Symbols []exchangeSymbol `json:"symbols"`
}

type exchangeSymbol struct {
	Symbol       string `json:"symbol"`
	ContractType string `json:"contractType"`
	Status       string `json:"status"`
	QuoteAsset   string `json:"quoteAsset"`
	DeliveryDate int64  `json:"deliveryDate"`
}

// FetchPerpSymbols queries baseURL's /fapi/v1/exchangeInfo and filters it
// down to live perpetual contracts quoted in one of quoteAssets (grounded
// on original_source's fetch_perp_symbols).
func FetchPerpSymbols(ctx context.Context, baseURL string, quoteAssets []string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: 15 * time.Second}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exchangeInfo: %v", klerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: exchangeInfo status %d", klerrors.ErrUpstream, resp.StatusCode)
	}

	var data exchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode exchangeInfo: %v", klerrors.ErrProtocol, err)
	}

	wanted := make(map[string]struct{}, len(quoteAssets))
	for _, q := range quoteAssets {
		wanted[q] = struct{}{}
	}
	nowMs := time.Now().UnixMilli()

	seen := make(map[string]struct{})
	var out []string
	for _, s := range data.Symbols {
		if s.ContractType != "PERPETUAL" || s.Status != "TRADING" {
			continue
		}
		if _, ok := wanted[s.QuoteAsset]; !ok {
			continue
		}
		if s.DeliveryDate != 0 && s.DeliveryDate <= nowMs {
			continue
		}
		if s.Symbol == "" {
			continue
		}
		if _, dup := seen[s.Symbol]; dup {
			continue
		}
		seen[s.Symbol] = struct{}{}
		out = append(out, s.Symbol)
	}
	sort.Strings(out)
	return out, nil
}
