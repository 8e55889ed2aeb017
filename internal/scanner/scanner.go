package scanner

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

// Config holds the scan thresholds, all in quote-currency units.
type Config struct {
	// MinProfit is the minimum acceptable net profit per unit traded.
	MinProfit decimal.Decimal
	// MinVolume excludes markets whose reported volume is at or below it.
	MinVolume decimal.Decimal
	// MaxSpreadPct excludes candidates whose spread looks like bad data.
	MaxSpreadPct decimal.Decimal
	// FeeRate is the flat taker fee applied to both legs.
	FeeRate decimal.Decimal
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		MinProfit:    decimal.RequireFromString("0.0005"),
		MinVolume:    decimal.NewFromInt(10),
		MaxSpreadPct: decimal.NewFromInt(50),
		FeeRate:      decimal.RequireFromString("0.002"),
	}
}

// ParseConfig builds a Config from the decimal strings carried in the
// application configuration.
func ParseConfig(minProfit, minVolume, maxSpreadPct, feeRate string) (Config, error) {
	cfg := Config{}
	var err error
	if cfg.MinProfit, err = decimal.NewFromString(minProfit); err != nil {
		return Config{}, fmt.Errorf("invalid min_profit %q: %w", minProfit, err)
	}
	if cfg.MinVolume, err = decimal.NewFromString(minVolume); err != nil {
		return Config{}, fmt.Errorf("invalid min_volume %q: %w", minVolume, err)
	}
	if cfg.MaxSpreadPct, err = decimal.NewFromString(maxSpreadPct); err != nil {
		return Config{}, fmt.Errorf("invalid max_spread_pct %q: %w", maxSpreadPct, err)
	}
	if cfg.FeeRate, err = decimal.NewFromString(feeRate); err != nil {
		return Config{}, fmt.Errorf("invalid fee_rate %q: %w", feeRate, err)
	}
	return cfg, nil
}

// minValidPrice guards against dust quotes where one side is effectively
// zero.
var (
	minValidPrice = decimal.RequireFromString("0.000001")
	hundred       = decimal.NewFromInt(100)
)

type market struct {
	exchange string
	buy      decimal.Decimal
	sell     decimal.Decimal
	volume   decimal.Decimal
}

// Scan walks the merged ticker set and returns cross-exchange arbitrage
// candidates ordered by net profit descending, ties broken by volume
// descending. Symbols are visited in sorted order so identical input
// yields identical output.
//
// Selection pairs the maximum ask across venues against the minimum bid.
// The pairing is intentional: the report surfaces the widest ask-to-bid
// divergence per symbol, not the trade a taker could execute.
func Scan(data map[string]map[string]models.Ticker, cfg Config) []models.Opportunity {
	symbols := make([]string, 0, len(data))
	for symbol := range data {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var opps []models.Opportunity
	for _, symbol := range symbols {
		markets := collectMarkets(data[symbol], cfg)
		if len(markets) < 2 {
			continue
		}

		bestBuy, bestSell := markets[0], markets[0]
		for _, m := range markets[1:] {
			if m.buy.GreaterThan(bestBuy.buy) {
				bestBuy = m
			}
			if m.sell.LessThan(bestSell.sell) {
				bestSell = m
			}
		}
		if bestBuy.exchange == bestSell.exchange {
			continue
		}

		spreadPct := bestBuy.buy.Sub(bestSell.sell).Div(bestSell.sell).Mul(hundred)
		if spreadPct.GreaterThan(cfg.MaxSpreadPct) {
			continue
		}

		fee := bestBuy.buy.Add(bestSell.sell).Mul(cfg.FeeRate)
		netProfit := bestBuy.buy.Sub(bestSell.sell).Sub(fee)
		if netProfit.LessThan(cfg.MinProfit) {
			continue
		}

		volume := bestSell.volume
		if bestBuy.volume.LessThan(volume) {
			volume = bestBuy.volume
		}

		opps = append(opps, models.Opportunity{
			Pair:         symbol,
			BuyExchange:  bestSell.exchange,
			SellExchange: bestBuy.exchange,
			BuyPrice:     bestSell.sell,
			SellPrice:    bestBuy.buy,
			Volume:       volume,
			NetProfit:    netProfit,
			ProfitPct:    netProfit.Div(bestSell.sell).Mul(hundred),
			SpreadPct:    spreadPct,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		if c := opps[i].NetProfit.Cmp(opps[j].NetProfit); c != 0 {
			return c > 0
		}
		return opps[i].Volume.GreaterThan(opps[j].Volume)
	})
	return opps
}

// collectMarkets filters one symbol's per-exchange quotes down to the
// markets worth comparing: enough volume, prices above the dust floor and
// an ask no more than 100x the bid (a corrupt-quote guard). Exchanges are
// visited in sorted order for determinism.
func collectMarkets(exchanges map[string]models.Ticker, cfg Config) []market {
	names := make([]string, 0, len(exchanges))
	for name := range exchanges {
		names = append(names, name)
	}
	sort.Strings(names)

	markets := make([]market, 0, len(names))
	for _, name := range names {
		t := exchanges[name]
		if t.Volume.LessThanOrEqual(cfg.MinVolume) {
			continue
		}
		if t.Buy.LessThanOrEqual(minValidPrice) || t.Sell.LessThanOrEqual(minValidPrice) {
			continue
		}
		if t.Buy.GreaterThan(t.Sell.Mul(hundred)) {
			continue
		}
		markets = append(markets, market{exchange: name, buy: t.Buy, sell: t.Sell, volume: t.Volume})
	}
	return markets
}
