package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// Bitget wraps its list in a code/msg envelope ("00000" means success) and
// names the best levels buyOne/sellOne. The quote volume lives in usdtVol,
// with quoteVol as a fallback when usdtVol is absent or empty.
type bitgetResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data []bitgetTickerEntry `json:"data"`
}

type bitgetTickerEntry struct {
	Symbol   string `json:"symbol"`
	BuyOne   field  `json:"buyOne"`
	SellOne  field  `json:"sellOne"`
	UsdtVol  field  `json:"usdtVol"`
	QuoteVol field  `json:"quoteVol"`
}

type bitgetAdapter struct{}

func (bitgetAdapter) Exchange() string { return models.ExchangeBitget }

func (bitgetAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var resp bitgetResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("bitget: decode response: %w", err)
	}
	if resp.Code != "00000" {
		return nil, 0, fmt.Errorf("bitget: api error code %q: %s", resp.Code, resp.Msg)
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(resp.Data))
	for _, e := range resp.Data {
		if !strings.HasSuffix(e.Symbol, "USDT") {
			continue
		}
		buy, err := e.BuyOne.decimal()
		if err != nil {
			continue
		}
		sell, err := e.SellOne.decimal()
		if err != nil {
			continue
		}
		vol := e.UsdtVol
		if vol == "" {
			vol = e.QuoteVol
		}
		volume, err := vol.decimal()
		if err != nil {
			continue
		}
		symbol := e.Symbol[:len(e.Symbol)-4] + "/USDT"
		t, ok := newTicker(models.ExchangeBitget, symbol, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}
