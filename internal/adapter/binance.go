package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// Binance returns a bare array of 24h ticker statistics with no envelope.
// USDT- and BTC-quoted pairs are accepted; everything else is skipped.
type binanceTickerEntry struct {
	Symbol      string `json:"symbol"`
	AskPrice    field  `json:"askPrice"`
	BidPrice    field  `json:"bidPrice"`
	QuoteVolume field  `json:"quoteVolume"`
}

type binanceAdapter struct{}

func (binanceAdapter) Exchange() string { return models.ExchangeBinance }

func (binanceAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var entries []binanceTickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, fmt.Errorf("binance: decode response: %w", err)
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(entries))
	for _, e := range entries {
		var base, quote string
		switch {
		case strings.HasSuffix(e.Symbol, "USDT"):
			base, quote = e.Symbol[:len(e.Symbol)-4], "USDT"
		case strings.HasSuffix(e.Symbol, "BTC"):
			base, quote = e.Symbol[:len(e.Symbol)-3], "BTC"
		default:
			continue
		}
		buy, err := e.AskPrice.decimal()
		if err != nil {
			continue
		}
		sell, err := e.BidPrice.decimal()
		if err != nil {
			continue
		}
		volume, err := e.QuoteVolume.decimal()
		if err != nil {
			continue
		}
		t, ok := newTicker(models.ExchangeBinance, base+"/"+quote, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}
