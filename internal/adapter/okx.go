package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arbflow/models"
)

// OKX wraps its ticker list in a code/msg envelope and reports pairs as
// instrument ids with a dash separator ("BTC-USDT").
type okxResponse struct {
	Code string           `json:"code"`
	Msg  string           `json:"msg"`
	Data []okxTickerEntry `json:"data"`
}

type okxTickerEntry struct {
	InstID string `json:"instId"`
	AskPx  field  `json:"askPx"`
	BidPx  field  `json:"bidPx"`
	Vol24h field  `json:"vol24h"`
}

type okxAdapter struct{}

func (okxAdapter) Exchange() string { return models.ExchangeOKX }

func (okxAdapter) Parse(raw []byte) ([]models.Ticker, int, error) {
	var resp okxResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("okx: decode response: %w", err)
	}
	if resp.Code != "0" {
		return nil, 0, fmt.Errorf("okx: api error code %q: %s", resp.Code, resp.Msg)
	}

	now := time.Now().Unix()
	tickers := make([]models.Ticker, 0, len(resp.Data))
	for _, e := range resp.Data {
		if e.InstID == "" || !strings.Contains(e.InstID, "-") {
			continue
		}
		buy, err := e.AskPx.decimal()
		if err != nil {
			continue
		}
		sell, err := e.BidPx.decimal()
		if err != nil {
			continue
		}
		volume, err := e.Vol24h.decimal()
		if err != nil {
			continue
		}
		symbol := strings.ReplaceAll(e.InstID, "-", "/")
		t, ok := newTicker(models.ExchangeOKX, symbol, buy, sell, volume, now)
		if !ok {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, len(tickers), nil
}
