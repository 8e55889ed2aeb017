package processor

import (
	"context"
	"testing"
	"time"

	appconfig "arbflow/config"
	"arbflow/internal/store"
	"arbflow/models"
)

func testConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Arbflow.Name = "arbflow-test"
	cfg.Processor.MaxWorkers = 1
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNormalizerMergesPayload(t *testing.T) {
	rawChan := make(chan models.RawTickerMessage, 1)
	st := store.New()
	n := NewNormalizer(testConfig(), rawChan, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rawChan <- models.RawTickerMessage{
		Exchange:  models.ExchangeGate,
		Data:      []byte(`[{"currency_pair":"BTC_USDT","lowest_ask":"30003","highest_bid":"30002","quote_volume":"700000"}]`),
		FetchedAt: time.Now(),
	}

	waitFor(t, 2*time.Second, func() bool {
		_, ok := st.Get("BTC/USDT", models.ExchangeGate)
		return ok
	})

	cancel()
	n.Stop()

	got, _ := st.Get("BTC/USDT", models.ExchangeGate)
	if got.Buy.String() != "30003" {
		t.Errorf("merged buy = %s, want 30003", got.Buy)
	}
}

func TestNormalizerEnvelopeErrorSkipsCycle(t *testing.T) {
	rawChan := make(chan models.RawTickerMessage, 2)
	st := store.New()
	n := NewNormalizer(testConfig(), rawChan, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Envelope failure must not poison the worker for later payloads.
	rawChan <- models.RawTickerMessage{
		Exchange: models.ExchangeOKX,
		Data:     []byte(`{"code":"51000","msg":"param error","data":[]}`),
	}
	rawChan <- models.RawTickerMessage{
		Exchange: models.ExchangeOKX,
		Data:     []byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT","askPx":"30001","bidPx":"30000","vol24h":"1200"}]}`),
	}

	waitFor(t, 2*time.Second, func() bool {
		_, ok := st.Get("BTC/USDT", models.ExchangeOKX)
		return ok
	})

	cancel()
	n.Stop()

	if st.Len() != 1 {
		t.Errorf("store symbols = %d, want 1", st.Len())
	}
}

func TestNormalizerDoubleStart(t *testing.T) {
	rawChan := make(chan models.RawTickerMessage)
	n := NewNormalizer(testConfig(), rawChan, store.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := n.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	cancel()
	n.Stop()
}
