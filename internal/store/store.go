package store

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

// Store accumulates canonical tickers keyed by symbol, then by exchange.
// Insertion is last-write-wins per (symbol, exchange): a later poll cycle
// silently overwrites an older one and no history is kept. The map grows
// unbounded across symbols, which is acceptable since cardinality is
// bounded by the combined exchange listings.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]models.Ticker
}

func New() *Store {
	return &Store{data: make(map[string]map[string]models.Ticker)}
}

// Put inserts or overwrites the ticker under its (symbol, exchange) slot.
func (s *Store) Put(t models.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exchanges, ok := s.data[t.Symbol]
	if !ok {
		exchanges = make(map[string]models.Ticker)
		s.data[t.Symbol] = exchanges
	}
	exchanges[t.Exchange] = t
}

// Merge inserts a batch of tickers, typically one adapter's output.
func (s *Store) Merge(tickers []models.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickers {
		exchanges, ok := s.data[t.Symbol]
		if !ok {
			exchanges = make(map[string]models.Ticker)
			s.data[t.Symbol] = exchanges
		}
		exchanges[t.Exchange] = t
	}
}

// Get returns the ticker stored for the symbol on the given exchange.
func (s *Store) Get(symbol, exchange string) (models.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[symbol][exchange]
	return t, ok
}

// Symbols returns the stored symbols in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for symbol := range s.data {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of symbols currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a deep copy of the store contents so the scanner can
// work on an immutable view while adapter merges continue.
func (s *Store) Snapshot() map[string]map[string]models.Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]models.Ticker, len(s.data))
	for symbol, exchanges := range s.data {
		copied := make(map[string]models.Ticker, len(exchanges))
		for exchange, t := range exchanges {
			copied[exchange] = t
		}
		out[symbol] = copied
	}
	return out
}

// persistedTicker is the on-disk shape of one (symbol, exchange) slot.
// Decimals are serialized as strings so no precision is lost crossing the
// persistence boundary.
type persistedTicker struct {
	Buy       string `json:"buy"`
	Sell      string `json:"sell"`
	Volume    string `json:"volume"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON renders the persisted snapshot format:
// symbol -> exchange -> {buy, sell, volume, timestamp}.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]persistedTicker, len(s.data))
	for symbol, exchanges := range s.data {
		slot := make(map[string]persistedTicker, len(exchanges))
		for exchange, t := range exchanges {
			slot[exchange] = persistedTicker{
				Buy:       t.Buy.String(),
				Sell:      t.Sell.String(),
				Volume:    t.Volume.String(),
				Timestamp: t.Timestamp,
			}
		}
		out[symbol] = slot
	}
	return json.Marshal(out)
}

// UnmarshalJSON loads a persisted snapshot. Entries whose decimal fields
// fail to parse are skipped rather than failing the whole load.
func (s *Store) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]persistedTicker
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]map[string]models.Ticker, len(raw))
	for symbol, exchanges := range raw {
		for exchange, p := range exchanges {
			buy, err := decimal.NewFromString(p.Buy)
			if err != nil {
				continue
			}
			sell, err := decimal.NewFromString(p.Sell)
			if err != nil {
				continue
			}
			volume, err := decimal.NewFromString(p.Volume)
			if err != nil {
				continue
			}
			slot, ok := s.data[symbol]
			if !ok {
				slot = make(map[string]models.Ticker)
				s.data[symbol] = slot
			}
			slot[exchange] = models.Ticker{
				Symbol:    symbol,
				Exchange:  exchange,
				Buy:       buy,
				Sell:      sell,
				Volume:    volume,
				Timestamp: p.Timestamp,
			}
		}
	}
	return nil
}
