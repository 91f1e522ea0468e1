// Package runtime samples the relay's own Go runtime stats and host CPU/RAM usage
// and exposes the latest sample as Prometheus gauges.
package runtime

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample names.
const (
	HeapAlloc    = "heap_alloc_bytes"
	HeapInuse    = "heap_inuse_bytes"
	Sys          = "sys_bytes"
	NumGC        = "gc_runs"
	Goroutines   = "goroutines"
	TotalMemory  = "host_memory_total_bytes"
	FreeMemory   = "host_memory_free_bytes"
	UsedMemory   = "host_memory_used_percent"
	CPUPercent   = "host_cpu_percent"
	namespace    = "wxrelay"
	subsystem    = "self"
	samplesTotal = "samples_total"
)

var gaugeHelp = map[string]string{
	HeapAlloc:   "Bytes of allocated heap objects.",
	HeapInuse:   "Bytes in in-use heap spans.",
	Sys:         "Bytes of memory obtained from the OS.",
	NumGC:       "Completed GC cycles.",
	Goroutines:  "Number of goroutines.",
	TotalMemory: "Total host memory.",
	FreeMemory:  "Free host memory.",
	UsedMemory:  "Host memory in use, percent.",
}

// Collector periodically samples runtime and host metrics.
type Collector struct {
	st   *stats
	stop chan struct{}
	wg   sync.WaitGroup

	descs   map[string]*prometheus.Desc
	cpuDesc *prometheus.Desc
	polls   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New creates a Collector with empty storage.
func New() *Collector {
	c := &Collector{
		st:    newStats(),
		stop:  make(chan struct{}),
		descs: make(map[string]*prometheus.Desc, len(gaugeHelp)),
		cpuDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, CPUPercent),
			"Per-CPU utilization, percent.", []string{"cpu"}, nil),
		polls: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, samplesTotal),
			"Number of samples taken.", nil, nil),
	}
	for name, help := range gaugeHelp {
		c.descs[name] = prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return c
}

// Start launches background goroutines that sample runtime and host metrics at the given interval.
func (c *Collector) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sampling interval must be positive, got %v", interval)
	}

	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		var ms runtime.MemStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				runtime.ReadMemStats(&ms)
				c.st.set(map[string]float64{
					HeapAlloc:  float64(ms.HeapAlloc),
					HeapInuse:  float64(ms.HeapInuse),
					Sys:        float64(ms.Sys),
					NumGC:      float64(ms.NumGC),
					Goroutines: float64(runtime.NumGoroutine()),
				})
				c.st.tick()
			}
		}
	}()

	tSys := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer tSys.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-tSys.C:
				host := make(map[string]float64)
				if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
					host[TotalMemory] = float64(vm.Total)
					host[FreeMemory] = float64(vm.Free)
					host[UsedMemory] = vm.UsedPercent
				}
				if pct, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
					for i, p := range pct {
						host[fmt.Sprintf("%s%d", CPUPercent, i+1)] = p
					}
				}
				c.st.set(host)
			}
		}
	}()

	return nil
}

// Stop signals every collector goroutine to halt and waits for them to finish.
func (c *Collector) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.wg.Wait()
}

// Snapshot returns a copy of the latest gauges and the number of runtime samples taken.
func (c *Collector) Snapshot() (map[string]float64, int64) {
	return c.st.snapshot()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
	ch <- c.cpuDesc
	ch <- c.polls
}

// Collect implements prometheus.Collector. Gauges that were never sampled are omitted.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	g, samples := c.st.snapshot()
	for name, d := range c.descs {
		if v, ok := g[name]; ok {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
		}
	}
	for i := 1; ; i++ {
		v, ok := g[fmt.Sprintf("%s%d", CPUPercent, i)]
		if !ok {
			break
		}
		ch <- prometheus.MustNewConstMetric(c.cpuDesc, prometheus.GaugeValue, v, fmt.Sprint(i))
	}
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(samples))
}
