package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "arbflow/config"
	"arbflow/internal/adapter"
	"arbflow/internal/metrics"
	"arbflow/internal/store"
	"arbflow/logger"
	"arbflow/models"
)

// Normalizer consumes raw exchange payloads, runs the matching adapter and
// merges the accepted canonical tickers into the store. Envelope failures
// cost the exchange one cycle and nothing else; per-record failures are
// already absorbed inside the adapters.
type Normalizer struct {
	config  *appconfig.Config
	rawChan <-chan models.RawTickerMessage
	store   *store.Store
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	// Metrics
	messagesProcessed int64
	recordsAccepted   int64
	envelopeErrors    int64
}

func NewNormalizer(cfg *appconfig.Config, rawChan <-chan models.RawTickerMessage, st *store.Store) *Normalizer {
	return &Normalizer{
		config:  cfg,
		rawChan: rawChan,
		store:   st,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
	}
}

func (n *Normalizer) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("normalizer already running")
	}
	n.running = true
	n.ctx = ctx
	n.mu.Unlock()

	log := n.log.WithComponent("normalizer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting normalizer")

	numWorkers := n.config.Processor.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	log.WithFields(logger.Fields{"workers": numWorkers}).Info("starting normalizer workers")

	for i := 0; i < numWorkers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	go n.metricsReporter(ctx)

	log.Info("normalizer started successfully")
	return nil
}

func (n *Normalizer) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()

	n.log.WithComponent("normalizer").Info("stopping normalizer")
	n.wg.Wait()
	n.log.WithComponent("normalizer").Info("normalizer stopped")
}

func (n *Normalizer) worker(workerID int) {
	defer n.wg.Done()

	log := n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"worker_id": workerID,
		"worker":    "normalizer",
	})

	log.Info("starting normalizer worker")

	for {
		select {
		case <-n.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case rawMsg, ok := <-n.rawChan:
			if !ok {
				log.Info("raw channel closed, worker stopping")
				return
			}

			start := time.Now()
			accepted := n.processMessage(rawMsg)
			duration := time.Since(start)

			logger.LogPerformanceEntry(log, "normalizer", "process_message", duration, logger.Fields{
				"worker_id": workerID,
				"exchange":  rawMsg.Exchange,
				"accepted":  accepted,
			})
		}
	}
}

func (n *Normalizer) processMessage(rawMsg models.RawTickerMessage) int {
	log := n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"exchange":  rawMsg.Exchange,
		"operation": "process_message",
	})

	a, ok := adapter.ForExchange(rawMsg.Exchange)
	if !ok {
		n.countError()
		log.Warn("no adapter registered for exchange")
		return 0
	}

	tickers, accepted, err := a.Parse(rawMsg.Data)
	if err != nil {
		n.countError()
		metrics.IncrementEnvelopeError(rawMsg.Exchange)
		log.WithError(err).Warn("exchange payload rejected, skipping this cycle")
		return 0
	}

	n.store.Merge(tickers)

	n.mu.Lock()
	n.messagesProcessed++
	n.recordsAccepted += int64(accepted)
	n.mu.Unlock()

	log.WithFields(logger.Fields{
		"accepted":      accepted,
		"store_symbols": n.store.Len(),
	}).Info("payload normalized and merged")

	logger.LogDataFlowEntry(log, "raw_channel", "ticker_store", accepted, "canonical_tickers")

	return accepted
}

func (n *Normalizer) countError() {
	n.mu.Lock()
	n.envelopeErrors++
	n.mu.Unlock()
}

func (n *Normalizer) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.reportMetrics()
		}
	}
}

func (n *Normalizer) reportMetrics() {
	n.mu.RLock()
	messagesProcessed := n.messagesProcessed
	recordsAccepted := n.recordsAccepted
	envelopeErrors := n.envelopeErrors
	n.mu.RUnlock()

	errorRate := float64(0)
	if messagesProcessed+envelopeErrors > 0 {
		errorRate = float64(envelopeErrors) / float64(messagesProcessed+envelopeErrors)
	}

	n.log.LogMetric("normalizer", "messages_processed", messagesProcessed, "counter", logger.Fields{})
	n.log.LogMetric("normalizer", "records_accepted", recordsAccepted, "counter", logger.Fields{})
	n.log.LogMetric("normalizer", "envelope_errors", envelopeErrors, "counter", logger.Fields{})
	n.log.LogMetric("normalizer", "error_rate", errorRate, "gauge", logger.Fields{})

	n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"messages_processed": messagesProcessed,
		"records_accepted":   recordsAccepted,
		"envelope_errors":    envelopeErrors,
		"error_rate":         errorRate,
		"store_symbols":      n.store.Len(),
	}).Info("normalizer metrics")
}
