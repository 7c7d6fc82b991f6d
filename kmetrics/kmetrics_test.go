package kmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistrySamplesBothFuncs(t *testing.T) {
	heapFn := func() (uint64, uint64, uint64, uint64) { return 3, 96, 1, 32 }
	schedFn := func() (int, int, int, int) { return 2, 1, 0, 5 }

	r := NewRegistry(heapFn, schedFn)
	r.Sample()

	if r.AllocCalls.Value() != 3 || r.AllocBytes.Value() != 96 {
		t.Fatalf("unexpected heap counters: calls=%d bytes=%d", r.AllocCalls.Value(), r.AllocBytes.Value())
	}
	if r.ReadyDepth.Value() != 2 || r.AllThreads.Value() != 5 {
		t.Fatalf("unexpected sched gauges: ready=%d all=%d", r.ReadyDepth.Value(), r.AllThreads.Value())
	}
}

func TestRegistryTolerateNilFuncs(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Sample() // must not panic
	if r.AllocCalls.Value() != 0 {
		t.Fatalf("expected zero-value counters with no heap func wired, got %d", r.AllocCalls.Value())
	}
}

func TestCounterAndGaugeStringImplementsExpvarVar(t *testing.T) {
	var c Counter
	c.Set(42)
	if c.String() != "42" {
		t.Fatalf("Counter.String() = %q, want %q", c.String(), "42")
	}

	var g Gauge
	g.Set(-3)
	if g.String() != "-3" {
		t.Fatalf("Gauge.String() = %q, want %q", g.String(), "-3")
	}
}

func TestRegistryImplementsPrometheusCollector(t *testing.T) {
	heapFn := func() (uint64, uint64, uint64, uint64) { return 1, 16, 1, 16 }
	schedFn := func() (int, int, int, int) { return 0, 0, 0, 2 }
	r := NewRegistry(heapFn, schedFn)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 8 {
		t.Fatalf("expected 8 metric families, got %d", len(families))
	}

	var sawAllocCalls bool
	for _, f := range families {
		if f.GetName() == "alienos_heap_alloc_calls_total" {
			sawAllocCalls = true
			if got := f.Metric[0].Counter.GetValue(); got != 1 {
				t.Fatalf("alienos_heap_alloc_calls_total = %v, want 1", got)
			}
		}
	}
	if !sawAllocCalls {
		t.Fatal("expected alienos_heap_alloc_calls_total among gathered families")
	}
}
