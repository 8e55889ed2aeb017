package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// OpportunityRecord is the parquet row shape for one ranked opportunity.
// Prices leave the exact-decimal domain here; parquet DOUBLE is a
// presentation format, not an input to further arithmetic.
type OpportunityRecord struct {
	ScanID       string  `parquet:"name=scan_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Pair         string  `parquet:"name=pair, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyExchange  string  `parquet:"name=buy_exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellExchange string  `parquet:"name=sell_exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyPrice     float64 `parquet:"name=buy_price, type=DOUBLE"`
	SellPrice    float64 `parquet:"name=sell_price, type=DOUBLE"`
	Volume       float64 `parquet:"name=volume, type=DOUBLE"`
	NetProfit    float64 `parquet:"name=net_profit, type=DOUBLE"`
	ProfitPct    float64 `parquet:"name=profit_pct, type=DOUBLE"`
	SpreadPct    float64 `parquet:"name=spread_pct, type=DOUBLE"`
	ScannedAt    int64   `parquet:"name=scanned_at, type=INT64"`
}

// memoryFileWriter implements ParquetFile for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// OpportunityWriter consumes ranked scan batches, reports each
// opportunity to the log and, when configured, writes one parquet file
// per non-empty scan.
type OpportunityWriter struct {
	config  *appconfig.Config
	oppChan <-chan models.OpportunityBatch
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	// Metrics
	batchesWritten int64
	filesWritten   int64
}

func NewOpportunityWriter(cfg *appconfig.Config, oppChan <-chan models.OpportunityBatch) *OpportunityWriter {
	return &OpportunityWriter{
		config:  cfg,
		oppChan: oppChan,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
	}
}

func (w *OpportunityWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("opportunity writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	log := w.log.WithComponent("opportunity_writer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting opportunity writer")

	if w.config.Storage.Parquet.Enabled {
		if err := os.MkdirAll(w.config.Storage.Parquet.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create parquet directory: %w", err)
		}
		log.WithFields(logger.Fields{
			"dir":         w.config.Storage.Parquet.Dir,
			"compression": w.config.Storage.Parquet.Compression,
		}).Info("parquet output enabled")
	}

	w.wg.Add(1)
	go w.worker()

	log.Info("opportunity writer started successfully")
	return nil
}

func (w *OpportunityWriter) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.log.WithComponent("opportunity_writer").Info("stopping opportunity writer")
	w.wg.Wait()
	w.log.WithComponent("opportunity_writer").Info("opportunity writer stopped")
}

func (w *OpportunityWriter) worker() {
	defer w.wg.Done()

	log := w.log.WithComponent("opportunity_writer").WithFields(logger.Fields{"worker": "opportunity_writer"})
	log.Info("starting opportunity writer worker")

	for {
		select {
		case <-w.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case batch, ok := <-w.oppChan:
			if !ok {
				log.Info("opportunity channel closed, worker stopping")
				return
			}
			w.processBatch(batch)
		}
	}
}

func (w *OpportunityWriter) processBatch(batch models.OpportunityBatch) {
	log := w.log.WithComponent("opportunity_writer").WithFields(logger.Fields{
		"scan_id":       batch.ScanID,
		"symbol_count":  batch.SymbolCount,
		"opportunities": len(batch.Opportunities),
		"operation":     "process_batch",
	})

	if len(batch.Opportunities) == 0 {
		log.Info("scan produced no opportunities")
		return
	}

	for i, opp := range batch.Opportunities {
		log.WithFields(logger.Fields{
			"rank":          i + 1,
			"pair":          opp.Pair,
			"buy_exchange":  opp.BuyExchange,
			"buy_price":     opp.BuyPrice.String(),
			"sell_exchange": opp.SellExchange,
			"sell_price":    opp.SellPrice.String(),
			"volume":        opp.Volume.String(),
			"net_profit":    opp.NetProfit.String(),
			"profit_pct":    opp.ProfitPct.String(),
			"spread_pct":    opp.SpreadPct.String(),
		}).Info("arbitrage opportunity")
	}

	w.mu.Lock()
	w.batchesWritten++
	w.mu.Unlock()

	if !w.config.Storage.Parquet.Enabled {
		return
	}

	path, size, err := w.writeParquetFile(batch)
	if err != nil {
		log.WithError(err).Error("failed to write parquet file")
		return
	}

	w.mu.Lock()
	w.filesWritten++
	w.mu.Unlock()

	log.WithFields(logger.Fields{
		"file":      path,
		"file_size": size,
	}).Info("scan batch written to parquet")
	logger.LogDataFlowEntry(log, "opportunity_channel", "parquet_file", len(batch.Opportunities), "opportunities")
}

func (w *OpportunityWriter) writeParquetFile(batch models.OpportunityBatch) (string, int64, error) {
	fw := newMemoryFileWriter()

	pw, err := pqwriter.NewParquetWriter(fw, new(OpportunityRecord), 4)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Storage.Parquet.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	case "lzo":
		pw.CompressionType = parquet.CompressionCodec_LZO
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, opp := range batch.Opportunities {
		record := OpportunityRecord{
			ScanID:       batch.ScanID,
			Pair:         opp.Pair,
			BuyExchange:  opp.BuyExchange,
			SellExchange: opp.SellExchange,
			BuyPrice:     opp.BuyPrice.InexactFloat64(),
			SellPrice:    opp.SellPrice.InexactFloat64(),
			Volume:       opp.Volume.InexactFloat64(),
			NetProfit:    opp.NetProfit.InexactFloat64(),
			ProfitPct:    opp.ProfitPct.InexactFloat64(),
			SpreadPct:    opp.SpreadPct.InexactFloat64(),
			ScannedAt:    batch.ScannedAt.UnixMilli(),
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return "", 0, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	data := fw.Bytes()
	filename := fmt.Sprintf("opportunities_%s_%s.parquet",
		batch.ScannedAt.UTC().Format("20060102150405"),
		batch.ScanID[:8])
	path := filepath.Join(w.config.Storage.Parquet.Dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write parquet file: %w", err)
	}

	return path, int64(len(data)), nil
}
