package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "arbflow/config"
	"arbflow/internal/channel"
	"arbflow/internal/metrics"
	"arbflow/internal/store"
	"arbflow/logger"
	"arbflow/models"
)

// Runner periodically snapshots the ticker store, runs a scan over the
// frozen view and publishes the ranked result to the opportunity channel.
type Runner struct {
	config   *appconfig.Config
	scanCfg  Config
	store    *store.Store
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	// Metrics
	scansCompleted     int64
	opportunitiesFound int64
}

func NewRunner(cfg *appconfig.Config, scanCfg Config, st *store.Store, ch *channel.Channels) *Runner {
	return &Runner{
		config:   cfg,
		scanCfg:  scanCfg,
		store:    st,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("scan runner already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("scan_runner").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{
		"interval":       r.config.Scanner.Interval,
		"min_profit":     r.scanCfg.MinProfit.String(),
		"min_volume":     r.scanCfg.MinVolume.String(),
		"max_spread_pct": r.scanCfg.MaxSpreadPct.String(),
		"fee_rate":       r.scanCfg.FeeRate.String(),
	}).Info("starting scan runner")

	r.wg.Add(1)
	go r.scanLoop()

	log.Info("scan runner started successfully")
	return nil
}

func (r *Runner) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("scan_runner").Info("stopping scan runner")
	r.wg.Wait()
	r.log.WithComponent("scan_runner").Info("scan runner stopped")
}

func (r *Runner) scanLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Scanner.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.log.WithComponent("scan_runner").Info("scan loop stopped due to context cancellation")
			return
		case <-ticker.C:
			r.runScan()
		}
	}
}

func (r *Runner) runScan() {
	scanID := uuid.New().String()
	log := r.log.WithComponent("scan_runner").WithFields(logger.Fields{
		"scan_id":   scanID,
		"operation": "run_scan",
	})

	snapshot := r.store.Snapshot()
	if len(snapshot) == 0 {
		log.Debug("ticker store empty, skipping scan")
		return
	}

	start := time.Now()
	opps := Scan(snapshot, r.scanCfg)
	duration := time.Since(start)

	r.mu.Lock()
	r.scansCompleted++
	r.opportunitiesFound += int64(len(opps))
	r.mu.Unlock()

	logger.LogPerformanceEntry(log, "scan_runner", "scan", duration, logger.Fields{
		"symbols":       len(snapshot),
		"opportunities": len(opps),
	})
	logger.IncrementScanCompleted(len(opps))
	metrics.IncrementScan(len(opps))

	batch := models.OpportunityBatch{
		ScanID:        scanID,
		ScannedAt:     start.UTC(),
		SymbolCount:   len(snapshot),
		Opportunities: opps,
	}

	if r.channels.SendOpportunities(r.ctx, batch) {
		log.WithFields(logger.Fields{"opportunities": len(opps)}).Info("scan results published")
		logger.LogDataFlowEntry(log, "ticker_store", "opportunity_channel", len(opps), "opportunities")
	} else if r.ctx.Err() != nil {
		return
	} else {
		log.Warn("opportunity channel is full, dropping scan results")
	}
}
