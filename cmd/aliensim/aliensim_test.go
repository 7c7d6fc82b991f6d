package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Alientation/AlienOS/kconfig"
	"github.com/Alientation/AlienOS/klog"
)

// Every subtest here exercises one scenario end to end through the wired
// kconfig/klog/platform/sched/heap/synch stack, rather than unit-testing a
// single package in isolation the way heap_test.go, sched_test.go and
// synch_test.go each do.

func runScenario(t *testing.T, name string) string {
	t.Helper()
	var out bytes.Buffer
	cfg := kconfig.New()
	if err := run(name, cfg, klog.NewNop(), &out); err != nil {
		t.Fatalf("scenario %s failed: %v", name, err)
	}
	return out.String()
}

func TestScenarioAlloc(t *testing.T) {
	out := runScenario(t, "alloc")
	if !strings.Contains(out, "alloc: ok") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestScenarioMutex(t *testing.T) {
	runScenario(t, "mutex")
}

func TestScenarioSemaphore(t *testing.T) {
	runScenario(t, "semaphore")
}

func TestScenarioCondVar(t *testing.T) {
	runScenario(t, "condvar")
}

func TestScenarioBroadcast(t *testing.T) {
	runScenario(t, "broadcast")
}

func TestScenarioBarrier(t *testing.T) {
	runScenario(t, "barrier")
}

func TestScenarioSleep(t *testing.T) {
	runScenario(t, "sleep")
}

func TestScenarioAllRunsEveryScenarioInOrder(t *testing.T) {
	out := runScenario(t, "all")
	last := -1
	for _, want := range []string{"alloc: ok", "mutex: ok", "semaphore: ok", "condvar: ok", "broadcast: ok", "barrier: ok", "sleep: ok"} {
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
		if idx < last {
			t.Fatalf("expected %q after the previous scenario's line, got %q", want, out)
		}
		last = idx
	}
}

func TestUnknownScenarioIsAnError(t *testing.T) {
	var out bytes.Buffer
	cfg := kconfig.New()
	if err := run("nonexistent", cfg, klog.NewNop(), &out); err == nil {
		t.Fatal("expected an error for an unknown scenario name")
	}
}
