package serialize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/klinenode/internal/model"
)

func TestKlines_EmptyIsEmptyArray(t *testing.T) {
	assert.Equal(t, "[]", string(Klines(nil)))
}

func TestKlines_RowShapeAndOrder(t *testing.T) {
	bars := []model.Bar{
		{OpenTime: 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
			CloseTime: 119_999, QuoteVolume: 100, Trades: 3, TakerBuyBase: 4, TakerBuyQuote: 40},
	}
	out := Klines(bars)

	var rows [][]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &rows))
	require.Len(t, rows, 1)
	row := rows[0]
	require.Len(t, row, 12)

	var openTime int64
	require.NoError(t, json.Unmarshal(row[0], &openTime))
	assert.Equal(t, int64(60_000), openTime)

	var open string
	require.NoError(t, json.Unmarshal(row[1], &open))
	assert.Equal(t, "1", open)

	var last string
	require.NoError(t, json.Unmarshal(row[11], &last))
	assert.Equal(t, "0", last)
}
