package platform

import (
	"context"
	"sync"
	"testing"
)

func TestGoroutineSwitchBaton(t *testing.T) {
	cs := NewGoroutineSwitch()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	cs.Seed(1, func() {
		record("a-start")
		cs.Resume(0)
		cs.Park(1)
		record("a-resume")
		close(done)
	})

	cs.Resume(1)
	cs.Park(0)
	record("main-resumed-a")
	cs.Resume(1)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a-start" || order[2] != "a-resume" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestVirtualTickerAdvance(t *testing.T) {
	vt := NewVirtualTicker()

	var ticks int
	vt.Run(context.Background(), func() { ticks++ })

	vt.Advance(5)
	if got := vt.Now(); got != 5 {
		t.Fatalf("Now() = %d, want 5", got)
	}
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}
}

func TestSimpleIRQSaveRestore(t *testing.T) {
	irq := NewSimpleIRQ()
	if !irq.Enabled() {
		t.Fatal("expected initially enabled")
	}
	prior := irq.SaveAndDisable()
	if !prior {
		t.Fatal("expected prior=true")
	}
	if irq.Enabled() {
		t.Fatal("expected disabled after SaveAndDisable")
	}
	inner := irq.SaveAndDisable()
	if inner {
		t.Fatal("expected prior=false on nested disable")
	}
	irq.Restore(inner)
	if irq.Enabled() {
		t.Fatal("expected still disabled after restoring inner save")
	}
	irq.Restore(prior)
	if !irq.Enabled() {
		t.Fatal("expected enabled after restoring outer save")
	}
}

func TestRecordingPanic(t *testing.T) {
	var rp RecordingPanic
	if rp.Triggered() {
		t.Fatal("expected not triggered")
	}
	rp.Panic("bad thing: %d", 42)
	if !rp.Triggered() {
		t.Fatal("expected triggered")
	}
	if rp.Messages[0] != "bad thing: 42" {
		t.Fatalf("unexpected message: %q", rp.Messages[0])
	}
}
