package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "arbflow/config"
	"arbflow/internal/store"
	"arbflow/logger"
)

// SnapshotWriter periodically persists the ticker store to a local JSON
// file and, when configured, mirrors the same snapshot into S3. The file
// is written atomically so a crash mid-flush never leaves a torn
// snapshot behind.
type SnapshotWriter struct {
	config   *appconfig.Config
	store    *store.Store
	s3Client *s3.Client
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewSnapshotWriter(cfg *appconfig.Config, st *store.Store) (*SnapshotWriter, error) {
	log := logger.GetLogger()

	w := &SnapshotWriter{
		config: cfg,
		store:  st,
		wg:     &sync.WaitGroup{},
		log:    log,
	}

	if cfg.Storage.S3.Enabled {
		ctx := context.Background()

		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Storage.S3.Region),
		}
		if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Storage.S3.AccessKeyID,
					cfg.Storage.S3.SecretAccessKey,
					"",
				),
			))
		}

		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			log.WithComponent("snapshot_writer").WithError(err).Warn("failed to load AWS configuration")
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		creds, err := awsConfig.Credentials.Retrieve(ctx)
		if err != nil || !creds.HasKeys() {
			return nil, fmt.Errorf("aws credentials not found")
		}

		w.s3Client = s3.NewFromConfig(awsConfig)

		log.WithComponent("snapshot_writer").WithFields(logger.Fields{
			"bucket": cfg.Storage.S3.Bucket,
			"region": cfg.Storage.S3.Region,
			"prefix": cfg.Storage.S3.Prefix,
		}).Info("s3 snapshot mirroring enabled")
	}

	log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"path":           cfg.Storage.Snapshot.Path,
		"flush_interval": cfg.Storage.Snapshot.FlushInterval,
	}).Info("snapshot writer initialized")

	return w, nil
}

func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("snapshot writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	log := w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting snapshot writer")

	if err := w.loadExisting(); err != nil {
		log.WithError(err).Warn("failed to load existing snapshot, starting empty")
	}

	w.wg.Add(1)
	go w.flushWorker()

	log.Info("snapshot writer started successfully")
	return nil
}

func (w *SnapshotWriter) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.log.WithComponent("snapshot_writer").Info("stopping snapshot writer")
	w.wg.Wait()
	w.log.WithComponent("snapshot_writer").Info("snapshot writer stopped")
}

// loadExisting seeds the store from the previous run's snapshot so scans
// have data before the first poll cycle completes. A missing file is not
// an error.
func (w *SnapshotWriter) loadExisting() error {
	data, err := os.ReadFile(w.config.Storage.Snapshot.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, w.store); err != nil {
		return fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"symbols": w.store.Len(),
		"path":    w.config.Storage.Snapshot.Path,
	}).Info("loaded existing snapshot")
	return nil
}

func (w *SnapshotWriter) flushWorker() {
	defer w.wg.Done()

	log := w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	ticker := time.NewTicker(w.config.Storage.Snapshot.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.flush("shutdown")
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-ticker.C:
			w.flush("interval")
		}
	}
}

func (w *SnapshotWriter) flush(reason string) {
	log := w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"operation": "flush",
		"reason":    reason,
	})

	if w.store.Len() == 0 {
		log.Debug("ticker store empty, skipping flush")
		return
	}

	start := time.Now()
	data, err := json.MarshalIndent(w.store, "", "  ")
	if err != nil {
		log.WithError(err).Error("failed to marshal ticker store")
		return
	}

	if err := w.writeAtomic(data); err != nil {
		log.WithError(err).Error("failed to write snapshot file")
		return
	}

	logger.LogPerformanceEntry(log, "snapshot_writer", "flush", time.Since(start), logger.Fields{
		"bytes":   len(data),
		"symbols": w.store.Len(),
	})
	logger.IncrementSnapshotWrite(int64(len(data)))

	if w.s3Client != nil {
		w.uploadToS3(data)
	}
}

func (w *SnapshotWriter) writeAtomic(data []byte) error {
	path := w.config.Storage.Snapshot.Path

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func (w *SnapshotWriter) uploadToS3(data []byte) {
	log := w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"operation": "upload_to_s3",
		"data_size": len(data),
	})

	key := filepath.ToSlash(filepath.Join(
		w.config.Storage.S3.Prefix,
		fmt.Sprintf("tickers_%s.json", time.Now().UTC().Format("20060102150405")),
	))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"content-type":    "ticker-snapshot",
			"arbflow-version": w.config.Arbflow.Version,
		},
	}

	ctx := context.WithoutCancel(w.ctx)
	if _, err := w.s3Client.PutObject(ctx, input); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket, "s3_key": key}).
			Error("failed to upload snapshot to S3")
		return
	}

	log.WithFields(logger.Fields{"s3_key": key}).Info("snapshot uploaded to S3")
}
