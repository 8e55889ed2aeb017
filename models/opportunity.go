package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a single cross-exchange arbitrage candidate: buy the pair
// on BuyExchange at BuyPrice, sell it on SellExchange at SellPrice. Volume
// is the tradable cap, the smaller of the two venues' reported volume.
// Opportunities are write-once; the derived fields are never recomputed.
type Opportunity struct {
	Pair         string          `json:"pair"`
	BuyExchange  string          `json:"buy_exchange"`
	SellExchange string          `json:"sell_exchange"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Volume       decimal.Decimal `json:"volume"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	ProfitPct    decimal.Decimal `json:"profit_pct"`
	SpreadPct    decimal.Decimal `json:"spread_pct"`
}

// OpportunityBatch is the ranked result of one scan cycle.
type OpportunityBatch struct {
	ScanID        string        `json:"scan_id"`
	ScannedAt     time.Time     `json:"scanned_at"`
	SymbolCount   int           `json:"symbol_count"`
	Opportunities []Opportunity `json:"opportunities"`
}
