package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supported spot venues. The identifiers double as the exchange keys in
// the persisted ticker snapshot, so they must stay stable.
const (
	ExchangeOKX     = "OKX"
	ExchangeBinance = "Binance"
	ExchangeBitget  = "Bitget"
	ExchangeGate    = "Gate"
	ExchangeMEXC    = "MEXC"
	ExchangeHTX     = "HTX"
)

// Ticker is the canonical quote one exchange reports for one trading pair.
// Symbol is always BASE/QUOTE, uppercase. Buy is the venue's best ask (the
// price a taker pays to acquire the base asset), Sell the best bid (the
// price a taker receives selling it). Timestamp is assigned when the raw
// record is normalized, in unix seconds, not the exchange's own clock.
type Ticker struct {
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp int64           `json:"timestamp"`
}

// RawTickerMessage carries one exchange's unparsed ticker payload from the
// reader to the normalizer.
type RawTickerMessage struct {
	Exchange  string
	Data      []byte
	FetchedAt time.Time
}
