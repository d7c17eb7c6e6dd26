package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/registry"
	"github.com/sawpanic/klinenode/internal/usecase"
)

const (
	defaultLimit = 500
	maxLimit     = 1500
)

func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	intervalStr := q.Get("interval")
	if symbol == "" || intervalStr == "" {
		writeError(w, http.StatusBadRequest, "symbol and interval are required")
		return
	}

	tf, err := model.ParseTimeframe(intervalStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer in 1..1500")
			return
		}
		limit = n
	}

	startMs, err := parseOptionalInt(q.Get("startTime"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "startTime must be an integer")
		return
	}
	endMs, err := parseOptionalInt(q.Get("endTime"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "endTime must be an integer")
		return
	}

	includeCurrent := q.Get("includeCurrent") == "true"

	data, err := s.getKlines.Run(r.Context(), usecase.GetKlinesParams{
		Symbol: symbol, Timeframe: tf, StartMs: startMs, EndMs: endMs,
		Limit: limit, IncludeCurrent: includeCurrent,
	})
	if err != nil {
		writeStoreOrUpstreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := s.health.Run(r.Context())
	if err != nil {
		writeStoreOrUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSymbolsRefresh(w http.ResponseWriter, r *http.Request) {
	newList, err := registry.FetchPerpSymbols(r.Context(), s.binanceBase, s.quoteAssets)
	if err != nil {
		writeStoreOrUpstreamError(w, err)
		return
	}
	added, removed := s.registry.Replace(newList)
	writeJSON(w, http.StatusOK, refreshSymbolsResponse{OK: true, Added: added, Removed: removed})
}

func parseOptionalInt(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeStoreOrUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, klerrors.ErrStore) || errors.Is(err, klerrors.ErrUpstream) || errors.Is(err, klerrors.ErrProtocol) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
