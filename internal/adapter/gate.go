package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// Gate returns a bare array keyed by currency_pair with an underscore
// separator ("BTC_USDT"). Leveraged tokens (3L/3S/5L/5S) are excluded;
// they track derivatives, not the spot pair.
var gateLeveragedMarkers = []string{"3L", "3S", "5L", "5S"}

type gateTickerEntry struct {
	CurrencyPair string `json:"currency_pair"`
	LowestAsk    field  `json:"lowest_ask"`
	HighestBid   field  `json:"highest_bid"`
	QuoteVolume  field  `json:"quote_volume"`
}

type gateAdapter struct{}

func (gateAdapter) Exchange() string { return models.ExchangeGate }

func (gateAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var entries []gateTickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, fmt.Errorf("gate: decode response: %w", err)
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(entries))
	for _, e := range entries {
		if e.CurrencyPair == "" || !strings.HasSuffix(e.CurrencyPair, "_USDT") {
			continue
		}
		if isLeveragedPair(e.CurrencyPair) {
			continue
		}
		buy, err := e.LowestAsk.decimal()
		if err != nil {
			continue
		}
		sell, err := e.HighestBid.decimal()
		if err != nil {
			continue
		}
		volume, err := e.QuoteVolume.decimal()
		if err != nil {
			continue
		}
		symbol := e.CurrencyPair[:len(e.CurrencyPair)-5] + "/USDT"
		t, ok := newTicker(models.ExchangeGate, symbol, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}

func isLeveragedPair(pair string) bool {
	for _, marker := range gateLeveragedMarkers {
		if strings.Contains(pair, marker) {
			return true
		}
	}
	return false
}
