package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/klinenode/internal/model"
)

func TestHTTPClient_FetchKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[60000,"100.0","105.0","99.0","102.0","10.0",119999,"1000.0",5,"4.0","400.0","0"]
		]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	bars, err := c.FetchKlines(context.Background(), "BTCUSDT", model.TF1m, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int64(60000), bars[0].OpenTime)
	assert.Equal(t, 105.0, bars[0].High)
	assert.Equal(t, int64(5), bars[0].Trades)
	assert.True(t, bars[0].IsFinal)
}

func TestHTTPClient_FetchKlines_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"invalid symbol"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.FetchKlines(context.Background(), "NOPE", model.TF1m, nil, nil, 10)
	require.Error(t, err)
}
