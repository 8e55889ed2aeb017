package adapter

import (
	"testing"

	"arbflow/models"
)

func parseFor(t *testing.T, exchange string, payload string) []models.Ticker {
	t.Helper()
	a, ok := ForExchange(exchange)
	if !ok {
		t.Fatalf("no adapter registered for %s", exchange)
	}
	tickers, count, err := a.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if count != len(tickers) {
		t.Fatalf("accepted count %d does not match ticker count %d", count, len(tickers))
	}
	return tickers
}

func findTicker(tickers []models.Ticker, symbol string) (models.Ticker, bool) {
	for _, tk := range tickers {
		if tk.Symbol == symbol {
			return tk, true
		}
	}
	return models.Ticker{}, false
}

func TestExchangesRegistry(t *testing.T) {
	want := []string{"Binance", "Bitget", "Gate", "HTX", "MEXC", "OKX"}
	got := Exchanges()
	if len(got) != len(want) {
		t.Fatalf("expected %d exchanges, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("exchange[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBinanceParse(t *testing.T) {
	payload := `[
		{"symbol":"BTCUSDT","askPrice":"30000.50","bidPrice":"30000.10","quoteVolume":"1500000"},
		{"symbol":"ETHBTC","askPrice":"0.052","bidPrice":"0.0519","quoteVolume":"320"},
		{"symbol":"BNBEUR","askPrice":"240.1","bidPrice":"240.0","quoteVolume":"9000"}
	]`
	tickers := parseFor(t, models.ExchangeBinance, payload)

	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(tickers))
	}

	btc, ok := findTicker(tickers, "BTC/USDT")
	if !ok {
		t.Fatal("BTC/USDT not found")
	}
	if btc.Buy.String() != "30000.5" {
		t.Errorf("buy = %s, want 30000.5", btc.Buy)
	}
	if btc.Sell.String() != "30000.1" {
		t.Errorf("sell = %s, want 30000.1", btc.Sell)
	}
	if btc.Volume.String() != "1500000" {
		t.Errorf("volume = %s, want 1500000", btc.Volume)
	}
	if btc.Exchange != models.ExchangeBinance {
		t.Errorf("exchange = %s", btc.Exchange)
	}

	if _, ok := findTicker(tickers, "ETH/BTC"); !ok {
		t.Error("ETH/BTC quoted in BTC should be accepted")
	}
}

func TestBinanceParseSkipsBadRecords(t *testing.T) {
	payload := `[
		{"symbol":"BTCUSDT","askPrice":"30000.50","bidPrice":"30000.10","quoteVolume":"1500000"},
		{"symbol":"AAAUSDT","askPrice":"","bidPrice":"1.0","quoteVolume":"100"},
		{"symbol":"BBBUSDT","askPrice":"-5","bidPrice":"1.0","quoteVolume":"100"},
		{"symbol":"CCCUSDT","askPrice":"1.0","bidPrice":"1.0","quoteVolume":"not-a-number"},
		{"symbol":"DDDUSDT","askPrice":"1.0","bidPrice":"0","quoteVolume":"100"}
	]`
	tickers := parseFor(t, models.ExchangeBinance, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected only the clean record to survive, got %d", len(tickers))
	}
	if tickers[0].Symbol != "BTC/USDT" {
		t.Errorf("surviving symbol = %s", tickers[0].Symbol)
	}
}

func TestBinanceParseMalformedPayload(t *testing.T) {
	a, _ := ForExchange(models.ExchangeBinance)
	if _, _, err := a.Parse([]byte(`{"not":"an array"}`)); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}

func TestOKXParse(t *testing.T) {
	payload := `{"code":"0","msg":"","data":[
		{"instId":"BTC-USDT","askPx":"30001","bidPx":"30000","vol24h":"1200"},
		{"instId":"ETHUSDT","askPx":"2000","bidPx":"1999","vol24h":"500"}
	]}`
	tickers := parseFor(t, models.ExchangeOKX, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected 1 ticker, got %d", len(tickers))
	}
	if tickers[0].Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want BTC/USDT", tickers[0].Symbol)
	}
}

func TestOKXParseEnvelopeError(t *testing.T) {
	a, _ := ForExchange(models.ExchangeOKX)
	_, _, err := a.Parse([]byte(`{"code":"51000","msg":"param error","data":[]}`))
	if err == nil {
		t.Fatal("expected envelope error for non-zero code")
	}
}

func TestBitgetParse(t *testing.T) {
	payload := `{"code":"00000","msg":"success","data":[
		{"symbol":"BTCUSDT","buyOne":"30002","sellOne":"30001","usdtVol":"800000","quoteVol":"1"},
		{"symbol":"ETHUSDT","buyOne":"2001","sellOne":"2000","usdtVol":"","quoteVol":"42000"},
		{"symbol":"BTCBRL","buyOne":"1","sellOne":"1","usdtVol":"1","quoteVol":"1"}
	]}`
	tickers := parseFor(t, models.ExchangeBitget, payload)
	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(tickers))
	}

	eth, ok := findTicker(tickers, "ETH/USDT")
	if !ok {
		t.Fatal("ETH/USDT not found")
	}
	if eth.Volume.String() != "42000" {
		t.Errorf("empty usdtVol should fall back to quoteVol, got volume %s", eth.Volume)
	}

	btc, _ := findTicker(tickers, "BTC/USDT")
	if btc.Volume.String() != "800000" {
		t.Errorf("usdtVol should win when present, got %s", btc.Volume)
	}
}

func TestBitgetParseEnvelopeError(t *testing.T) {
	a, _ := ForExchange(models.ExchangeBitget)
	if _, _, err := a.Parse([]byte(`{"code":"40001","msg":"denied","data":[]}`)); err == nil {
		t.Fatal("expected envelope error for non-success code")
	}
}

func TestGateParseExcludesLeveragedTokens(t *testing.T) {
	payload := `[
		{"currency_pair":"BTC_USDT","lowest_ask":"30003","highest_bid":"30002","quote_volume":"700000"},
		{"currency_pair":"BTC3L_USDT","lowest_ask":"1.2","highest_bid":"1.1","quote_volume":"50000"},
		{"currency_pair":"ETH5S_USDT","lowest_ask":"0.4","highest_bid":"0.39","quote_volume":"8000"},
		{"currency_pair":"DOGE_ETH","lowest_ask":"0.001","highest_bid":"0.0009","quote_volume":"100"}
	]`
	tickers := parseFor(t, models.ExchangeGate, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected only BTC/USDT, got %d tickers", len(tickers))
	}
	if tickers[0].Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want BTC/USDT", tickers[0].Symbol)
	}
}

func TestMEXCParse(t *testing.T) {
	payload := `[
		{"symbol":"BTCUSDT","askPrice":"30004","bidPrice":"30003","quoteVolume":"600000"},
		{"symbol":"ETHBTC","askPrice":"0.05","bidPrice":"0.049","quoteVolume":"10"}
	]`
	tickers := parseFor(t, models.ExchangeMEXC, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected 1 ticker, got %d", len(tickers))
	}
	if tickers[0].Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want BTC/USDT", tickers[0].Symbol)
	}
}

func TestHTXParseBareNumbers(t *testing.T) {
	payload := `{"status":"ok","data":[
		{"symbol":"btcusdt","ask":30005.5,"bid":30005.1,"vol":900000.25},
		{"symbol":"ethbtc","ask":0.05,"bid":0.049,"vol":10}
	]}`
	tickers := parseFor(t, models.ExchangeHTX, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected 1 ticker, got %d", len(tickers))
	}
	btc := tickers[0]
	if btc.Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want BTC/USDT", btc.Symbol)
	}
	if btc.Buy.String() != "30005.5" {
		t.Errorf("buy = %s, want 30005.5", btc.Buy)
	}
	if btc.Volume.String() != "900000.25" {
		t.Errorf("volume = %s, want 900000.25", btc.Volume)
	}
}

func TestHTXParseNestedTickers(t *testing.T) {
	payload := `{"status":"ok","data":{"tickers":[
		{"symbol":"btcusdt","ask":30006,"bid":30005,"vol":100000}
	]}}`
	tickers := parseFor(t, models.ExchangeHTX, payload)
	if len(tickers) != 1 {
		t.Fatalf("expected 1 ticker from nested container, got %d", len(tickers))
	}
	if tickers[0].Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want BTC/USDT", tickers[0].Symbol)
	}
}

func TestHTXParseEnvelopeError(t *testing.T) {
	a, _ := ForExchange(models.ExchangeHTX)
	_, _, err := a.Parse([]byte(`{"status":"error","err-msg":"invalid symbol","data":[]}`))
	if err == nil {
		t.Fatal("expected envelope error for status error")
	}
}

func TestParseDeterminism(t *testing.T) {
	payload := `[
		{"symbol":"BTCUSDT","askPrice":"30000.50","bidPrice":"30000.10","quoteVolume":"1500000"},
		{"symbol":"ETHUSDT","askPrice":"2000","bidPrice":"1999","quoteVolume":"42000"}
	]`
	first := parseFor(t, models.ExchangeBinance, payload)
	second := parseFor(t, models.ExchangeBinance, payload)
	if len(first) != len(second) {
		t.Fatalf("parse counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Symbol != second[i].Symbol || !first[i].Buy.Equal(second[i].Buy) {
			t.Errorf("parse order or values differ at index %d", i)
		}
	}
}

func TestFieldUnmarshal(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"1.5"`, "1.5", false},
		{`2.75`, "2.75", false},
		{`""`, "", true},
		{`null`, "", true},
		{`"abc"`, "", true},
	}
	for _, c := range cases {
		var f field
		if err := f.UnmarshalJSON([]byte(c.raw)); err != nil {
			t.Fatalf("UnmarshalJSON(%s) failed: %v", c.raw, err)
		}
		d, err := f.decimal()
		if c.wantErr {
			if err == nil {
				t.Errorf("decimal() for %s: expected error, got %s", c.raw, d)
			}
			continue
		}
		if err != nil {
			t.Errorf("decimal() for %s failed: %v", c.raw, err)
			continue
		}
		if d.String() != c.want {
			t.Errorf("decimal() for %s = %s, want %s", c.raw, d, c.want)
		}
	}
}
