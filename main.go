package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arbflow/config"
	"arbflow/internal/channel"
	"arbflow/internal/dashboard"
	"arbflow/internal/metrics"
	"arbflow/internal/scanner"
	"arbflow/internal/store"
	"arbflow/logger"
	"arbflow/processor"
	"arbflow/reader"
	"arbflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Arbflow.Name,
		"version": cfg.Arbflow.Version,
	}).Info("starting arbflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.Dashboard,
		)
	}

	if cfg.Metrics.Prometheus.Enabled {
		metrics.Init(cfg.Metrics.Prometheus.Address)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	scanCfg, err := scanner.ParseConfig(
		cfg.Scanner.MinProfit,
		cfg.Scanner.MinVolume,
		cfg.Scanner.MaxSpreadPct,
		cfg.Scanner.FeeRate,
	)
	if err != nil {
		log.WithError(err).Error("Failed to parse scanner thresholds")
		os.Exit(1)
	}

	channels := channel.NewChannels(
		cfg.Channels.RawBuffer,
		cfg.Channels.OpportunityBuffer,
	)
	defer channels.Close()

	metrics.StartChannelSizeMetrics(ctx, channels, 30*time.Second)

	tickerStore := store.New()

	dashboardServer, err := dashboard.NewServer(cfg.Dashboard, log, tickerStore, channels)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard server")
		os.Exit(1)
	}
	if dashboardServer != nil {
		go func() {
			if err := dashboardServer.Run(ctx, cfg.Arbflow.Name, cfg.Arbflow.Version); err != nil {
				log.WithError(err).Warn("dashboard server exited with error")
			}
		}()
		log.WithComponent("main").WithFields(logger.Fields{
			"address": dashboardServer.Address(),
		}).Info("dashboard server started")
	}

	tickerReader := reader.NewReader(cfg, channels)
	normalizer := processor.NewNormalizer(cfg, channels.Raw, tickerStore)
	scanRunner := scanner.NewRunner(cfg, scanCfg, tickerStore, channels)
	opportunityWriter := writer.NewOpportunityWriter(cfg, channels.Opportunities)

	var snapshotWriter *writer.SnapshotWriter
	if cfg.Storage.Snapshot.Enabled {
		snapshotWriter, err = writer.NewSnapshotWriter(cfg, tickerStore)
		if err != nil {
			log.WithError(err).Error("failed to create snapshot writer")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("snapshot persistence disabled; skipping snapshot writer")
	}

	var wg sync.WaitGroup

	if snapshotWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := snapshotWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("snapshot writer failed to start")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := opportunityWriter.Start(ctx); err != nil {
			log.WithError(err).Warn("opportunity writer failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := normalizer.Start(ctx); err != nil {
			log.WithError(err).Warn("normalizer failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scanRunner.Start(ctx); err != nil {
			log.WithError(err).Warn("scan runner failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tickerReader.Start(ctx); err != nil {
			log.WithError(err).Warn("reader failed to start")
		}
	}()

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping reader")
	tickerReader.Stop()

	log.Info("stopping scan runner")
	scanRunner.Stop()

	log.Info("stopping normalizer")
	normalizer.Stop()

	log.Info("stopping opportunity writer")
	opportunityWriter.Stop()

	if snapshotWriter != nil {
		log.Info("stopping snapshot writer")
		snapshotWriter.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("arbflow stopped")
}
