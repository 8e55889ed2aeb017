package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arbflow/config"
	"arbflow/internal/channel"
	"arbflow/models"
)

func readerConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Arbflow.Name = "arbflow-test"
	cfg.Reader.Timeout = 2 * time.Second
	cfg.Reader.Interval = time.Minute
	cfg.Reader.RequestsPerSecond = 10
	cfg.Reader.UserAgent = "Arbflow-Test/1.0"
	cfg.Exchanges.Htx = config.ExchangeConfig{Enabled: true, URL: url}
	return cfg
}

func TestReaderPollsEnabledExchange(t *testing.T) {
	payload := `{"status":"ok","data":[{"symbol":"btcusdt","ask":30005,"bid":30004,"vol":900000}]}`

	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	channels := channel.NewChannels(4, 4)
	defer channels.Close()

	r := NewReader(readerConfig(srv.URL), channels)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case msg := <-channels.Raw:
		if msg.Exchange != models.ExchangeHTX {
			t.Errorf("exchange = %s, want HTX", msg.Exchange)
		}
		if string(msg.Data) != payload {
			t.Errorf("payload altered in transit")
		}
		if msg.FetchedAt.IsZero() {
			t.Error("fetched_at not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no raw message before deadline")
	}

	if gotUserAgent != "Arbflow-Test/1.0" {
		t.Errorf("user agent = %q", gotUserAgent)
	}

	cancel()
	r.Stop()
}

func TestReaderSurvivesHTTPError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	channels := channel.NewChannels(4, 4)
	defer channels.Close()

	r := NewReader(readerConfig(srv.URL), channels)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The failed fetch costs HTX this cycle only; nothing reaches the channel.
	select {
	case msg := <-channels.Raw:
		t.Fatalf("error response should not be forwarded, got %s payload", msg.Exchange)
	case <-time.After(200 * time.Millisecond):
	}

	if calls == 0 {
		t.Error("endpoint never polled")
	}

	cancel()
	r.Stop()
}

func TestReaderNoExchangesEnabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reader.Timeout = time.Second
	cfg.Reader.Interval = time.Minute
	cfg.Reader.RequestsPerSecond = 1

	channels := channel.NewChannels(1, 1)
	defer channels.Close()

	r := NewReader(cfg, channels)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err == nil {
		t.Fatal("Start should fail with no exchanges enabled")
	}
}
