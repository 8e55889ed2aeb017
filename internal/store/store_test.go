package store

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

func ticker(symbol, exchange, buy, sell, volume string, ts int64) models.Ticker {
	return models.Ticker{
		Symbol:    symbol,
		Exchange:  exchange,
		Buy:       decimal.RequireFromString(buy),
		Sell:      decimal.RequireFromString(sell),
		Volume:    decimal.RequireFromString(volume),
		Timestamp: ts,
	}
}

func TestPutAndGet(t *testing.T) {
	s := New()
	s.Put(ticker("BTC/USDT", "Binance", "30000.5", "30000.1", "1500000", 1700000000))

	got, ok := s.Get("BTC/USDT", "Binance")
	if !ok {
		t.Fatal("ticker not found after Put")
	}
	if got.Buy.String() != "30000.5" {
		t.Errorf("buy = %s, want 30000.5", got.Buy)
	}

	if _, ok := s.Get("BTC/USDT", "OKX"); ok {
		t.Error("expected miss for unknown exchange")
	}
	if _, ok := s.Get("ETH/USDT", "Binance"); ok {
		t.Error("expected miss for unknown symbol")
	}
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	s.Put(ticker("BTC/USDT", "Binance", "30000", "29999", "100", 1700000000))
	s.Put(ticker("BTC/USDT", "Binance", "30010", "30009", "200", 1700000060))

	got, _ := s.Get("BTC/USDT", "Binance")
	if got.Buy.String() != "30010" {
		t.Errorf("buy = %s, want the newer 30010", got.Buy)
	}
	if got.Timestamp != 1700000060 {
		t.Errorf("timestamp = %d, want 1700000060", got.Timestamp)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	s := New()
	batch := []models.Ticker{
		ticker("BTC/USDT", "Binance", "30000", "29999", "100", 1700000000),
		ticker("ETH/USDT", "Binance", "2000", "1999", "50", 1700000000),
	}
	s.Merge(batch)
	s.Merge(batch)

	if s.Len() != 2 {
		t.Errorf("len = %d, want 2 after repeated merge", s.Len())
	}
	want := []string{"BTC/USDT", "ETH/USDT"}
	got := s.Symbols()
	if len(got) != len(want) {
		t.Fatalf("symbols = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbols[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	s.Put(ticker("BTC/USDT", "Binance", "30000", "29999", "100", 1700000000))

	snap := s.Snapshot()
	snap["BTC/USDT"]["Binance"] = ticker("BTC/USDT", "Binance", "1", "1", "1", 1)
	delete(snap, "BTC/USDT")

	got, ok := s.Get("BTC/USDT", "Binance")
	if !ok {
		t.Fatal("store mutated through snapshot")
	}
	if got.Buy.String() != "30000" {
		t.Errorf("buy = %s, snapshot mutation leaked into store", got.Buy)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := New()
	s.Put(ticker("BTC/USDT", "Binance", "30000.50", "30000.10", "1500000", 1700000000))
	s.Put(ticker("BTC/USDT", "OKX", "30001", "30000", "1200", 1700000001))

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("persisted snapshot is not valid JSON: %v", err)
	}
	slot := raw["BTC/USDT"]["Binance"]
	if slot["buy"] != "30000.5" {
		t.Errorf("persisted buy = %v, want string 30000.5", slot["buy"])
	}
	if slot["timestamp"] != float64(1700000000) {
		t.Errorf("persisted timestamp = %v", slot["timestamp"])
	}

	restored := New()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	got, ok := restored.Get("BTC/USDT", "OKX")
	if !ok {
		t.Fatal("OKX ticker lost in round trip")
	}
	if got.Buy.String() != "30001" {
		t.Errorf("restored buy = %s, want 30001", got.Buy)
	}
	if got.Symbol != "BTC/USDT" || got.Exchange != "OKX" {
		t.Errorf("restored identity = %s/%s", got.Symbol, got.Exchange)
	}
}

func TestUnmarshalSkipsBadEntries(t *testing.T) {
	payload := `{
		"BTC/USDT": {
			"Binance": {"buy":"30000","sell":"29999","volume":"100","timestamp":1700000000},
			"OKX": {"buy":"garbage","sell":"29999","volume":"100","timestamp":1700000000}
		}
	}`

	s := New()
	if err := json.Unmarshal([]byte(payload), s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := s.Get("BTC/USDT", "Binance"); !ok {
		t.Error("clean entry should survive")
	}
	if _, ok := s.Get("BTC/USDT", "OKX"); ok {
		t.Error("entry with unparseable decimal should be skipped")
	}
}
