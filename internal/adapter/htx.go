package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// HTX signals success with status "ok" and reports symbols lowercase. The
// data field is usually the ticker list itself but some responses nest it
// under a tickers key. Prices and volumes arrive as bare JSON numbers.
type htxResponse struct {
	Status string          `json:"status"`
	ErrMsg string          `json:"err-msg"`
	Data   json.RawMessage `json:"data"`
}

type htxTickerEntry struct {
	Symbol string `json:"symbol"`
	Ask    field  `json:"ask"`
	Bid    field  `json:"bid"`
	Vol    field  `json:"vol"`
}

type htxAdapter struct{}

func (htxAdapter) Exchange() string { return models.ExchangeHTX }

func (htxAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var resp htxResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("htx: decode response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, 0, fmt.Errorf("htx: api error status %q: %s", resp.Status, resp.ErrMsg)
	}

	var entries []htxTickerEntry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		var nested struct {
			Tickers []htxTickerEntry `json:"tickers"`
		}
		if err2 := json.Unmarshal(resp.Data, &nested); err2 != nil {
			return nil, 0, fmt.Errorf("htx: unexpected data container: %w", err)
		}
		entries = nested.Tickers
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(entries))
	for _, e := range entries {
		symbol := strings.ToUpper(e.Symbol)
		if !strings.HasSuffix(symbol, "USDT") {
			continue
		}
		buy, err := e.Ask.decimal()
		if err != nil {
			continue
		}
		sell, err := e.Bid.decimal()
		if err != nil {
			continue
		}
		volume, err := e.Vol.decimal()
		if err != nil {
			continue
		}
		canonical := symbol[:len(symbol)-4] + "/USDT"
		t, ok := newTicker(models.ExchangeHTX, canonical, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}
