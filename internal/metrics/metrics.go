// Registers:
//
//	#arbflow_ticker_fetches_total
//	#arbflow_envelope_errors_total
//	#arbflow_scans_total
//	#arbflow_opportunities_total
//	#go_* and process_* system metrics
//
// Exposes them on the configured address using the Prometheus HTTP handler.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbflow/logger"
)

var (
	once           sync.Once
	tickerFetches  *prometheus.CounterVec
	envelopeErrors *prometheus.CounterVec
	scansTotal     prometheus.Counter
	oppsTotal      prometheus.Counter
)

func Init(address string) {
	once.Do(func() {
		if address == "" {
			address = "0.0.0.0:2112"
		}

		tickerFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbflow_ticker_fetches_total",
				Help: "Number of raw ticker payloads fetched per exchange",
			},
			[]string{"exchange"},
		)

		envelopeErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbflow_envelope_errors_total",
				Help: "Number of exchange payloads rejected at the envelope level",
			},
			[]string{"exchange"},
		)

		scansTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbflow_scans_total",
				Help: "Number of completed arbitrage scan cycles",
			},
		)

		oppsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbflow_opportunities_total",
				Help: "Number of arbitrage opportunities surfaced by scans",
			},
		)

		_ = prometheus.Register(tickerFetches)
		_ = prometheus.Register(envelopeErrors)
		_ = prometheus.Register(scansTotal)
		_ = prometheus.Register(oppsTotal)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			// The exporter is an observability surface; losing it must not
			// take the pipeline down. Counters keep accumulating in-process.
			if err := http.ListenAndServe(address, mux); err != nil {
				logger.GetLogger().WithComponent("metrics").WithError(err).
					Error("metrics endpoint unavailable, continuing without it")
			}
		}()
	})
}

// IncrementTickerFetch increases the fetch counter for a given exchange.
func IncrementTickerFetch(exchange string) {
	if tickerFetches != nil {
		tickerFetches.WithLabelValues(exchange).Inc()
	}
}

// IncrementEnvelopeError increases the rejected-payload counter for a given exchange.
func IncrementEnvelopeError(exchange string) {
	if envelopeErrors != nil {
		envelopeErrors.WithLabelValues(exchange).Inc()
	}
}

// IncrementScan records one finished scan cycle and its opportunity count.
func IncrementScan(opportunities int) {
	if scansTotal != nil {
		scansTotal.Inc()
	}
	if oppsTotal != nil {
		oppsTotal.Add(float64(opportunities))
	}
}
