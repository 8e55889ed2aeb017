package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// MEXC mirrors the Binance 24h ticker shape but only USDT-quoted pairs are
// accepted.
type mexcTickerEntry struct {
	Symbol      string `json:"symbol"`
	AskPrice    field  `json:"askPrice"`
	BidPrice    field  `json:"bidPrice"`
	QuoteVolume field  `json:"quoteVolume"`
}

type mexcAdapter struct{}

func (mexcAdapter) Exchange() string { return models.ExchangeMEXC }

func (mexcAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var entries []mexcTickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, fmt.Errorf("mexc: decode response: %w", err)
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Symbol, "USDT") {
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
		symbol := e.Symbol[:len(e.Symbol)-4] + "/USDT"
		t, ok := newTicker(models.ExchangeMEXC, symbol, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}
