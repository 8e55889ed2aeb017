package dashboard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"arbflow/logger"
)

// resourceSnapshot is one sample of host utilisation as served by
// /api/resources.
type resourceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	DiskPct     float64   `json:"disk_percent"`
}

// resourceSampler collects host samples in the background and retains the
// most recent ones in a fixed-size ring, same shape as the metric and log
// stores.
type resourceSampler struct {
	mu   sync.RWMutex
	buf  []resourceSnapshot
	next int
	full bool

	interval time.Duration
	diskPath string

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	log     *logger.Log
}

// The gopsutil collectors are indirected through package variables so tests
// can substitute deterministic samples.
var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

func newResourceSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	if limit <= 0 {
		limit = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &resourceSampler{
		buf:      make([]resourceSnapshot, limit),
		interval: interval,
		diskPath: diskPath,
		log:      log,
	}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s == nil {
		return
	}
	if s.running.Swap(true) {
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx)
	}()
}

func (s *resourceSampler) stop() {
	if s == nil {
		return
	}
	if cancel := s.cancel; cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

func (s *resourceSampler) run(ctx context.Context) {
	defer s.running.Store(false)

	for ctx.Err() == nil {
		snapshot, err := s.collect(ctx)
		if err != nil {
			s.log.WithComponent("resource_sampler").WithError(err).Debug("resource sample failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
			continue
		}
		s.append(snapshot)
	}
}

// collect takes one full sample. The cpu collector blocks for the sampling
// interval, which is what paces the loop between samples.
func (s *resourceSampler) collect(ctx context.Context) (resourceSnapshot, error) {
	cpuSamples, err := cpuPercentFn(ctx, s.interval)
	if err != nil {
		return resourceSnapshot{}, fmt.Errorf("cpu: %w", err)
	}

	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		return resourceSnapshot{}, fmt.Errorf("memory: %w", err)
	}

	diskStats, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		return resourceSnapshot{}, fmt.Errorf("disk %s: %w", s.diskPath, err)
	}

	var cpuPct float64
	if len(cpuSamples) > 0 {
		cpuPct = cpuSamples[0]
	}

	return resourceSnapshot{
		Timestamp:   time.Now(),
		CPUPercent:  cpuPct,
		MemoryUsed:  memStats.Used,
		MemoryTotal: memStats.Total,
		MemoryPct:   memStats.UsedPercent,
		DiskUsed:    diskStats.Used,
		DiskTotal:   diskStats.Total,
		DiskPct:     diskStats.UsedPercent,
	}, nil
}

func (s *resourceSampler) append(snapshot resourceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = snapshot
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.full = true
	}
}

// snapshot returns the retained samples oldest first.
func (s *resourceSampler) snapshot() []resourceSnapshot {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		return append([]resourceSnapshot(nil), s.buf[:s.next]...)
	}
	out := make([]resourceSnapshot, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}
