package hoststats

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Snapshot is the host load shown on the system status page. Fields that
// could not be read are left zero.
type Snapshot struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalGB     uint64  `json:"memory_total_gb"`
	MemoryUsedGB      uint64  `json:"memory_used_gb"`
	DiskUsedPercent   float64 `json:"disk_used_percent"`
}

// Collector reads host statistics with gopsutil.
type Collector struct {
	diskPath string
	logger   *zap.Logger
}

func NewCollector(diskPath string, logger *zap.Logger) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Collector{diskPath: diskPath, logger: logger}
}

// Collect reads CPU, memory and disk concurrently.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	span, ctx := opentracing.StartSpanFromContext(ctx, "collect-host-stats")
	defer span.Finish()

	var (
		wg   sync.WaitGroup
		snap Snapshot
	)
	wg.Add(3)
	go c.collectCPU(ctx, &wg, &snap)
	go c.collectMemory(ctx, &wg, &snap)
	go c.collectDisk(ctx, &wg, &snap)
	wg.Wait()
	return snap
}

func (c *Collector) collectCPU(ctx context.Context, wg *sync.WaitGroup, snap *Snapshot) {
	defer wg.Done()
	span, ctx := opentracing.StartSpanFromContext(ctx, "collect-cpu")
	defer span.Finish()

	// zero interval compares against the previous call
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(usage) == 0 {
		c.logger.Debug("Error getting CPU usage", zap.Error(err))
		span.SetTag("error", true)
		return
	}
	snap.CPUPercent = usage[0]
	span.SetTag("cpu_usage_percent", usage[0])
}

func (c *Collector) collectMemory(ctx context.Context, wg *sync.WaitGroup, snap *Snapshot) {
	defer wg.Done()
	span, ctx := opentracing.StartSpanFromContext(ctx, "collect-memory")
	defer span.Finish()

	vMem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		c.logger.Debug("Error getting memory usage", zap.Error(err))
		span.SetTag("error", true)
		return
	}
	snap.MemoryUsedPercent = vMem.UsedPercent
	snap.MemoryTotalGB = vMem.Total / (1 << 30)
	snap.MemoryUsedGB = vMem.Used / (1 << 30)
	span.SetTag("memory_used_percent", vMem.UsedPercent)
}

func (c *Collector) collectDisk(ctx context.Context, wg *sync.WaitGroup, snap *Snapshot) {
	defer wg.Done()
	span, ctx := opentracing.StartSpanFromContext(ctx, "collect-disk")
	defer span.Finish()

	usage, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		c.logger.Debug("Error getting disk usage", zap.String("path", c.diskPath), zap.Error(err))
		span.SetTag("error", true)
		return
	}
	snap.DiskUsedPercent = usage.UsedPercent
	span.SetTag("disk_used_percent", usage.UsedPercent)
}
