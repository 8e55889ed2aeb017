package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"arbflow/config"
	"arbflow/internal/channel"
	"arbflow/internal/metrics"
	"arbflow/logger"
	"arbflow/models"
)

// Reader polls the public ticker endpoint of every enabled exchange on a
// fixed interval and pushes the raw payloads onto the raw channel. It
// performs no parsing beyond what is needed to move bytes; normalization
// happens downstream. A failed fetch only costs that exchange one cycle.
type Reader struct {
	config        *config.Config
	channels      *channel.Channels
	httpClient    *http.Client
	binanceClient *binance.Client
	limiter       *rate.Limiter
	endpoints     map[string]string
	ctx           context.Context
	wg            *sync.WaitGroup
	mu            sync.RWMutex
	running       bool
	log           *logger.Log
}

// NewReader creates a Reader for the exchanges enabled in the
// configuration. Binance is fetched through the go-binance client so its
// endpoint, transport and serialization stay SDK-managed; the remaining
// venues share one plain HTTP client.
func NewReader(cfg *config.Config, ch *channel.Channels) *Reader {
	log := logger.GetLogger()

	httpClient := &http.Client{Timeout: cfg.Reader.Timeout}

	bclient := binance.NewClient("", "")
	bclient.HTTPClient = httpClient
	if u := cfg.Exchanges.Binance.URL; u != "" {
		if parsed, err := url.Parse(u); err == nil {
			bclient.BaseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		}
	}

	rps := cfg.Reader.RequestsPerSecond
	if rps < 1 {
		rps = 1
	}

	reader := &Reader{
		config:        cfg,
		channels:      ch,
		httpClient:    httpClient,
		binanceClient: bclient,
		limiter:       rate.NewLimiter(rate.Limit(rps), rps),
		endpoints:     cfg.EnabledExchanges(),
		wg:            &sync.WaitGroup{},
		log:           log,
	}

	log.WithComponent("reader").WithFields(logger.Fields{
		"exchanges": len(reader.endpoints),
		"timeout":   cfg.Reader.Timeout,
		"interval":  cfg.Reader.Interval,
	}).Info("reader initialized")

	return reader
}

// Start launches one poll worker per enabled exchange.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("reader").WithFields(logger.Fields{"operation": "start"})

	if len(r.endpoints) == 0 {
		log.Warn("no exchanges enabled")
		return fmt.Errorf("no exchanges enabled")
	}

	exchanges := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		exchanges = append(exchanges, name)
	}
	sort.Strings(exchanges)

	log.WithFields(logger.Fields{"exchanges": exchanges}).Info("starting reader")

	for _, exchange := range exchanges {
		r.wg.Add(1)
		go r.pollWorker(exchange, r.endpoints[exchange])
	}

	log.Info("reader started successfully")
	return nil
}

// Stop signals all workers to stop and waits for completion.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("reader").Info("stopping reader")
	r.wg.Wait()
	r.log.WithComponent("reader").Info("reader stopped")
}

func (r *Reader) pollWorker(exchange, endpoint string) {
	defer r.wg.Done()

	log := r.log.WithComponent("reader").WithFields(logger.Fields{
		"exchange": exchange,
		"worker":   "ticker_poller",
	})

	log.Info("starting poll worker")

	// First fetch right away so the store has data before the first tick.
	r.fetchTickers(exchange, endpoint)

	ticker := time.NewTicker(r.config.Reader.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-ticker.C:
			r.fetchTickers(exchange, endpoint)
		}
	}
}

func (r *Reader) fetchTickers(exchange, endpoint string) {
	log := r.log.WithComponent("reader").WithFields(logger.Fields{
		"exchange":  exchange,
		"operation": "fetch_tickers",
	})

	if err := r.limiter.Wait(r.ctx); err != nil {
		return
	}

	start := time.Now()
	var payload []byte
	var err error
	if exchange == models.ExchangeBinance {
		payload, err = r.fetchBinance()
	} else {
		payload, err = r.httpGet(endpoint)
	}
	duration := time.Since(start)

	if err != nil {
		log.WithError(err).Warn("failed to fetch tickers")
		return
	}

	logger.LogPerformanceEntry(log, "reader", "api_request", duration, logger.Fields{
		"exchange": exchange,
	})

	msg := models.RawTickerMessage{
		Exchange:  exchange,
		Data:      payload,
		FetchedAt: time.Now().UTC(),
	}

	if r.channels.SendRaw(r.ctx, msg) {
		log.WithFields(logger.Fields{"payload_bytes": len(payload)}).Debug("ticker payload sent to raw channel")
		logger.IncrementTickerRead(len(payload))
		metrics.IncrementTickerFetch(exchange)
	} else if r.ctx.Err() != nil {
		return
	} else {
		log.Warn("raw channel is full, dropping payload")
	}
}

// fetchBinance pulls the 24h ticker statistics through the SDK and
// re-marshals them so the downstream adapter sees the wire field names.
func (r *Reader) fetchBinance() ([]byte, error) {
	stats, err := r.binanceClient.NewListPriceChangeStatsService().Do(r.ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24h stats: %w", err)
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("marshal binance stats: %w", err)
	}
	return payload, nil
}

func (r *Reader) httpGet(endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.Reader.UserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
