// Package serialize renders Bars into the exchange-compatible nested JSON
// array wire format.
package serialize

import (
	"strconv"

	"github.com/sawpanic/klinenode/internal/model"
)

// Klines renders bars (already ascending by OpenTime) as the JSON array of
// 12-element arrays the served and upstream klines endpoints share.
func Klines(bars []model.Bar) []byte {
	buf := make([]byte, 0, 64+len(bars)*128)
	buf = append(buf, '[')
	for i, b := range bars {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendRow(buf, b)
	}
	buf = append(buf, ']')
	return buf
}

func appendRow(buf []byte, b model.Bar) []byte {
	buf = append(buf, '[')
	buf = strconv.AppendInt(buf, b.OpenTime, 10)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.Open)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.High)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.Low)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.Close)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.Volume)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, b.CloseTime, 10)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.QuoteVolume)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, b.Trades, 10)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.TakerBuyBase)
	buf = append(buf, ',')
	buf = appendQuotedFloat(buf, b.TakerBuyQuote)
	buf = append(buf, ',')
	buf = append(buf, '"', '0', '"')
	buf = append(buf, ']')
	return buf
}

func appendQuotedFloat(buf []byte, f float64) []byte {
	buf = append(buf, '"')
	buf = strconv.AppendFloat(buf, f, 'f', -1, 64)
	buf = append(buf, '"')
	return buf
}
