package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsTotal        int64
	warnsTotal         int64
	tickerReads        int64
	scansCompleted     int64
	opportunitiesFound int64
	snapshotWrites     int64
	channels           sync.Map // map[string]*channelStat
)

func recordWarn(string) {
	atomic.AddInt64(&warnsTotal, 1)
}

func recordError(string) {
	atomic.AddInt64(&errorsTotal, 1)
}

// IncrementTickerRead records one raw ticker payload fetched from a venue.
func IncrementTickerRead(size int) {
	atomic.AddInt64(&tickerReads, 1)
	recordChannel("ticker_rest", size)
}

// IncrementScanCompleted records one finished scan cycle and the number of
// opportunities it produced.
func IncrementScanCompleted(opportunities int) {
	atomic.AddInt64(&scansCompleted, 1)
	atomic.AddInt64(&opportunitiesFound, int64(opportunities))
}

// IncrementSnapshotWrite records one persisted ticker store snapshot.
func IncrementSnapshotWrite(size int64) {
	atomic.AddInt64(&snapshotWrites, 1)
	recordChannel("snapshot_write", int(size))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors":              atomic.LoadInt64(&errorsTotal),
		"warns":               atomic.LoadInt64(&warnsTotal),
		"ticker_reads":        atomic.LoadInt64(&tickerReads),
		"scans_completed":     atomic.LoadInt64(&scansCompleted),
		"opportunities_found": atomic.LoadInt64(&opportunitiesFound),
		"snapshot_writes":     atomic.LoadInt64(&snapshotWrites),
		"goroutines":          runtime.NumGoroutine(),
		"cpu_percent":         cpuPct,
		"memory_mb":           int64(memStats.Used) / 1024 / 1024,
		"disk_mb":             int64(diskStats.Used) / 1024 / 1024,
		"channels":            channelData,
		"net_bytes_sent":      int64(bytesSent),
		"net_bytes_recv":      int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-Warns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-TickerReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["ticker_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-ScansCompleted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["scans_completed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-OpportunitiesFound"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["opportunities_found"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-SnapshotWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Arbflow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Arbflow-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Arbflow-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
