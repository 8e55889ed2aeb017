package adapter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

// Adapter turns one exchange's raw ticker payload into canonical tickers.
// A malformed envelope (bad status code, data field of the wrong container
// type) fails the whole call; the caller treats that as the exchange's poll
// failing this cycle. Individual bad records are dropped one by one and
// never abort the batch. The returned count equals the number of accepted
// records.
type Adapter interface {
	Exchange() string
	Parse(raw []byte) ([]models.Ticker, int, error)
}

var registry = map[string]Adapter{
	models.ExchangeOKX:     okxAdapter{},
	models.ExchangeBinance: binanceAdapter{},
	models.ExchangeBitget:  bitgetAdapter{},
	models.ExchangeGate:    gateAdapter{},
	models.ExchangeMEXC:    mexcAdapter{},
	models.ExchangeHTX:     htxAdapter{},
}

// ForExchange returns the adapter registered for the given exchange id.
func ForExchange(exchange string) (Adapter, bool) {
	a, ok := registry[exchange]
	return a, ok
}

// Exchanges lists the registered exchange ids in sorted order.
func Exchanges() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+/[A-Z0-9]+$`)

// field holds a numeric JSON value. Venues disagree on whether prices and
// volumes are serialized as strings or bare numbers, so both are accepted.
type field string

func (f *field) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = field(s)
		return nil
	}
	*f = field(b)
	return nil
}

func (f field) decimal() (decimal.Decimal, error) {
	if f == "" || f == "null" {
		return decimal.Decimal{}, fmt.Errorf("value missing")
	}
	return decimal.NewFromString(string(f))
}

// newTicker validates the canonical invariants: positive prices, a
// non-negative volume and a BASE/QUOTE symbol. Records violating them are
// dropped by the caller.
func newTicker(exchange, symbol string, buy, sell, volume decimal.Decimal, ts int64) (models.Ticker, bool) {
	if !symbolPattern.MatchString(symbol) {
		return models.Ticker{}, false
	}
	if buy.Sign() <= 0 || sell.Sign() <= 0 || volume.Sign() < 0 {
		return models.Ticker{}, false
	}
	return models.Ticker{
		Symbol:    symbol,
		Exchange:  exchange,
		Buy:       buy,
		Sell:      sell,
		Volume:    volume,
		Timestamp: ts,
	}, true
}
