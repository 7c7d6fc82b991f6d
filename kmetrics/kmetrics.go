// Package kmetrics exposes the allocator's stats counters and the
// scheduler's queue depths as expvar-style values and as a
// prometheus.Collector (github.com/prometheus/client_golang). Neither
// heap nor sched depends on kmetrics; it is a pull-based observer wired up
// by cmd/aliensim (or a test) against the stats functions those packages
// already export.
package kmetrics

import (
	"expvar"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotone counter, matching heap.Heap's four stats fields
// (allocation-call count, allocation bytes, free-call count, free bytes —
// all only ever increase).
type Counter struct{ v atomic.Uint64 }

func (c *Counter) Set(n uint64)  { c.v.Store(n) }
func (c *Counter) Value() uint64 { return c.v.Load() }

// String implements expvar.Var.
func (c *Counter) String() string { return strconv.FormatUint(c.Value(), 10) }

// Gauge is a point-in-time value, used for the scheduler's queue depths.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// String implements expvar.Var.
func (g *Gauge) String() string { return strconv.FormatInt(g.Value(), 10) }

var (
	_ expvar.Var = (*Counter)(nil)
	_ expvar.Var = (*Gauge)(nil)
)

// HeapStatsFunc matches heap.Heap.Stats' signature, so a Registry can be
// wired to a live heap without kmetrics importing the heap package.
type HeapStatsFunc func() (allocCalls, allocBytes, freeCalls, freeBytes uint64)

// SchedStatsFunc matches sched.Stats' signature.
type SchedStatsFunc func() (ready, sleeping, zombie, all int)

// Registry samples a heap's and/or a scheduler's stats functions on demand
// into a fixed set of Counters and Gauges, and can serve them either via
// expvar or as a prometheus.Collector.
type Registry struct {
	AllocCalls Counter
	AllocBytes Counter
	FreeCalls  Counter
	FreeBytes  Counter

	ReadyDepth    Gauge
	SleepingDepth Gauge
	ZombieDepth   Gauge
	AllThreads    Gauge

	heapFn  HeapStatsFunc
	schedFn SchedStatsFunc
}

// NewRegistry constructs a Registry wired to the given stats functions.
// Either may be nil, e.g. a test exercising only the allocator.
func NewRegistry(heapFn HeapStatsFunc, schedFn SchedStatsFunc) *Registry {
	return &Registry{heapFn: heapFn, schedFn: schedFn}
}

// Sample refreshes every Counter/Gauge from the wired stats functions.
func (r *Registry) Sample() {
	if r.heapFn != nil {
		allocCalls, allocBytes, freeCalls, freeBytes := r.heapFn()
		r.AllocCalls.Set(allocCalls)
		r.AllocBytes.Set(allocBytes)
		r.FreeCalls.Set(freeCalls)
		r.FreeBytes.Set(freeBytes)
	}
	if r.schedFn != nil {
		ready, sleeping, zombie, all := r.schedFn()
		r.ReadyDepth.Set(int64(ready))
		r.SleepingDepth.Set(int64(sleeping))
		r.ZombieDepth.Set(int64(zombie))
		r.AllThreads.Set(int64(all))
	}
}

// Publish registers every Counter/Gauge with expvar under prefix-qualified
// names, e.g. prefix "alienos" publishes "alienos_heap_alloc_calls". It
// samples once before publishing. Like expvar itself, calling Publish twice
// with the same prefix in one process panics — callers own the prefix's
// uniqueness, the same contract expvar.Publish itself carries.
func (r *Registry) Publish(prefix string) {
	r.Sample()
	expvar.Publish(prefix+"_heap_alloc_calls", &r.AllocCalls)
	expvar.Publish(prefix+"_heap_alloc_bytes", &r.AllocBytes)
	expvar.Publish(prefix+"_heap_free_calls", &r.FreeCalls)
	expvar.Publish(prefix+"_heap_free_bytes", &r.FreeBytes)
	expvar.Publish(prefix+"_sched_ready_depth", &r.ReadyDepth)
	expvar.Publish(prefix+"_sched_sleeping_depth", &r.SleepingDepth)
	expvar.Publish(prefix+"_sched_zombie_depth", &r.ZombieDepth)
	expvar.Publish(prefix+"_sched_all_threads", &r.AllThreads)
}

var (
	descAllocCalls = prometheus.NewDesc("alienos_heap_alloc_calls_total", "Total Alloc/Calloc calls served.", nil, nil)
	descAllocBytes = prometheus.NewDesc("alienos_heap_alloc_bytes_total", "Total bytes (including headers) handed out by Alloc/Calloc.", nil, nil)
	descFreeCalls  = prometheus.NewDesc("alienos_heap_free_calls_total", "Total Free calls served.", nil, nil)
	descFreeBytes  = prometheus.NewDesc("alienos_heap_free_bytes_total", "Total bytes (including headers) returned via Free.", nil, nil)

	descReadyDepth    = prometheus.NewDesc("alienos_sched_ready_threads", "Number of threads currently Ready.", nil, nil)
	descSleepingDepth = prometheus.NewDesc("alienos_sched_sleeping_threads", "Number of threads currently Sleeping.", nil, nil)
	descZombieDepth   = prometheus.NewDesc("alienos_sched_zombie_threads", "Number of threads currently Zombie, awaiting reclamation.", nil, nil)
	descAllThreads    = prometheus.NewDesc("alienos_sched_all_threads", "Total live thread descriptors, including the bootstrap and idle threads.", nil, nil)
)

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAllocCalls
	ch <- descAllocBytes
	ch <- descFreeCalls
	ch <- descFreeBytes
	ch <- descReadyDepth
	ch <- descSleepingDepth
	ch <- descZombieDepth
	ch <- descAllThreads
}

// Collect implements prometheus.Collector. It samples the wired stats
// functions synchronously — the scheduler and heap only ever report
// cheap, already-resident counters, so there is no need to cache between
// scrapes.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.Sample()
	ch <- prometheus.MustNewConstMetric(descAllocCalls, prometheus.CounterValue, float64(r.AllocCalls.Value()))
	ch <- prometheus.MustNewConstMetric(descAllocBytes, prometheus.CounterValue, float64(r.AllocBytes.Value()))
	ch <- prometheus.MustNewConstMetric(descFreeCalls, prometheus.CounterValue, float64(r.FreeCalls.Value()))
	ch <- prometheus.MustNewConstMetric(descFreeBytes, prometheus.CounterValue, float64(r.FreeBytes.Value()))
	ch <- prometheus.MustNewConstMetric(descReadyDepth, prometheus.GaugeValue, float64(r.ReadyDepth.Value()))
	ch <- prometheus.MustNewConstMetric(descSleepingDepth, prometheus.GaugeValue, float64(r.SleepingDepth.Value()))
	ch <- prometheus.MustNewConstMetric(descZombieDepth, prometheus.GaugeValue, float64(r.ZombieDepth.Value()))
	ch <- prometheus.MustNewConstMetric(descAllThreads, prometheus.GaugeValue, float64(r.AllThreads.Value()))
}

var _ prometheus.Collector = (*Registry)(nil)
