// Command aliensim boots the simulated kernel (platform + sched + heap +
// synch, tied together through kconfig and narrated through klog/kmetrics)
// and runs one or all of its end-to-end exercise scenarios to completion:
// allocator split/coalesce, mutual exclusion, producer/consumer handoff,
// a condvar bounded buffer, broadcast wakeup, a barrier rendezvous, and
// deterministic sleep ordering.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Alientation/AlienOS/heap"
	"github.com/Alientation/AlienOS/kconfig"
	"github.com/Alientation/AlienOS/klog"
	"github.com/Alientation/AlienOS/kmetrics"
	"github.com/Alientation/AlienOS/platform"
	"github.com/Alientation/AlienOS/sched"
	"github.com/Alientation/AlienOS/synch"
)

func main() {
	fs := flag.NewFlagSet("aliensim", flag.ExitOnError)
	scenario := fs.String("scenario", "all", "which scenario to run: alloc, mutex, semaphore, condvar, broadcast, barrier, sleep, or all")
	cfg := kconfig.New()
	cfg.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	logger := klog.New(os.Stderr, klog.DefaultLevel)
	if err := run(*scenario, cfg, logger, os.Stdout); err != nil {
		logger.Fatal("scenario failed", klog.F("err", err.Error()))
		os.Exit(1)
	}
}

// heapStackAllocator adapts a *heap.Heap to sched.StackAllocator, so thread
// stacks come from the kernel heap instead of sched's default bump
// allocator. Both methods
// use the heap's unsynchronized entry points: sched calls Alloc and Free
// from inside its own critical section (newThread, zombie reclamation), so
// going through the heap's own mutex here would try to re-block through
// sched while sched's lock is already held by the same goroutine.
type heapStackAllocator struct{ h *heap.Heap }

func (a heapStackAllocator) Alloc(n int) (uintptr, []byte) {
	addr := a.h.AllocUnsynchronized(n)
	return addr, a.h.Bytes(addr, n)
}

func (a heapStackAllocator) Free(addr uintptr) {
	a.h.FreeUnsynchronized(addr)
}

// bootKernel wires platform, sched and heap together per cfg, routing both
// the allocator's and the scheduler's fatal path through logger via
// platform.NewLoggingPanic rather than straight to stderr. Every scenario
// starts from a fresh scheduler (ResetForTest is intentionally reused here,
// not just from tests, since MainInit may only run once per process state).
func bootKernel(cfg kconfig.Config, logger klog.Logger, tick platform.TickSource) *heap.Heap {
	sched.ResetForTest()

	onFatal := platform.NewLoggingPanic(logger, nil)

	kernelEnd := uintptr(cfg.KernelImageEnd)
	mm := platform.MemoryMap{
		{Start: kernelEnd, Length: 16 * 1024 * 1024, Kind: platform.RegionAvailable},
	}
	h := heap.New(mm, kernelEnd, heap.Config{
		Panic:         onFatal,
		InitialExtend: uintptr(cfg.InitialHeapExtend),
	})

	sched.MainInit(sched.Config{
		StackSize: cfg.StackSize,
		Platform:  platform.Bundle{Tick: tick, Panic: onFatal},
		Stacks:    heapStackAllocator{h: h},
	})
	return h
}

// run dispatches to the named scenario (or every scenario, in a fixed
// order) and reports its outcome via logger and kmetrics. out receives a
// one-line human summary per scenario, the way a CLI's stdout would.
func run(scenario string, cfg kconfig.Config, logger klog.Logger, out io.Writer) error {
	scenarios := map[string]func(kconfig.Config, klog.Logger) error{
		"alloc":     scenarioAlloc,
		"mutex":     scenarioMutex,
		"semaphore": scenarioSemaphore,
		"condvar":   scenarioCondVar,
		"broadcast": scenarioBroadcast,
		"barrier":   scenarioBarrier,
		"sleep":     scenarioSleep,
	}

	names := []string{"alloc", "mutex", "semaphore", "condvar", "broadcast", "barrier", "sleep"}
	if scenario != "all" {
		fn, ok := scenarios[scenario]
		if !ok {
			return fmt.Errorf("aliensim: unknown scenario %q", scenario)
		}
		if err := fn(cfg, logger); err != nil {
			return fmt.Errorf("scenario %s: %w", scenario, err)
		}
		fmt.Fprintf(out, "%s: ok\n", scenario)
		return nil
	}

	for _, name := range names {
		if err := scenarios[name](cfg, logger); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s: ok\n", name)
	}
	return nil
}

// scenarioAlloc runs the allocator's split/coalesce scenario
// directly against a live, scheduler-backed heap, then publishes its stats
// through a kmetrics.Registry — the combination heap_test.go and
// kmetrics_test.go each only exercise separately.
func scenarioAlloc(cfg kconfig.Config, logger klog.Logger) error {
	h := bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	p1 := h.Alloc(16)
	p2 := h.Alloc(16)
	p3 := h.Alloc(16)
	p4 := h.Alloc(16)
	h.Free(p2)
	p5 := h.Alloc(16)
	if p5 != p2 {
		return fmt.Errorf("alloc: expected reused address %#x, got %#x", p2, p5)
	}
	h.Free(p5)
	h.Free(p3)
	h.Free(p4)
	p6 := h.Alloc(48)
	if p6 != p2 {
		return fmt.Errorf("alloc: expected coalesced address %#x, got %#x", p2, p6)
	}
	h.Free(p1)
	h.Free(p6)

	reg := kmetrics.NewRegistry(h.Stats, sched.Stats)
	reg.Sample()
	logger.Info("alloc scenario complete",
		klog.F("alloc_calls", reg.AllocCalls.Value()),
		klog.F("free_calls", reg.FreeCalls.Value()),
	)
	return nil
}

// scenarioMutex runs the mutual-exclusion scenario: many threads
// incrementing a shared counter under a single Mutex, with CheckPreempt
// giving the scheduler bounded-latency preemption points.
func scenarioMutex(cfg kconfig.Config, logger klog.Logger) error {
	bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	mu := synch.NewMutex()
	done := synch.NewSemaphore(0)
	counter := 0

	const numThreads = 5
	const iterations = 2000

	for i := 0; i < numThreads; i++ {
		sched.Create(func(any) {
			for j := 0; j < iterations; j++ {
				mu.Acquire()
				counter++
				mu.Release()
				sched.CheckPreempt()
			}
			done.Up()
		}, nil)
	}
	for i := 0; i < numThreads; i++ {
		done.Down()
	}

	if want := numThreads * iterations; counter != want {
		return fmt.Errorf("mutex: counter = %d, want %d", counter, want)
	}
	logger.Info("mutex scenario complete", klog.F("counter", counter))
	return nil
}

// scenarioSemaphore runs a single-cell producer/consumer handoff over a
// pair of semaphores.
func scenarioSemaphore(cfg kconfig.Config, logger klog.Logger) error {
	bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	produce := synch.NewSemaphore(1)
	consume := synch.NewSemaphore(0)
	done := synch.NewSemaphore(0)

	var cell int
	var got []int

	sched.Create(func(any) {
		for v := 1; v <= 5; v++ {
			produce.Down()
			cell = v
			consume.Up()
		}
	}, nil)
	sched.Create(func(any) {
		for i := 0; i < 5; i++ {
			consume.Down()
			got = append(got, cell)
			produce.Up()
		}
		done.Up()
	}, nil)
	done.Down()

	for i, v := range got {
		if v != i+1 {
			return fmt.Errorf("semaphore: out of order: %v", got)
		}
	}
	logger.Info("semaphore scenario complete", klog.F("items", len(got)))
	return nil
}

// boundedBuffer is a condvar-guarded bounded buffer: push blocks while
// full, pop blocks while empty.
type boundedBuffer struct {
	mu       *synch.Mutex
	notFull  *synch.CondVar
	notEmpty *synch.CondVar
	cap      int
	items    []int
}

func newBoundedBuffer(capacity int) *boundedBuffer {
	return &boundedBuffer{
		mu:       synch.NewMutex(),
		notFull:  synch.NewCondVar(),
		notEmpty: synch.NewCondVar(),
		cap:      capacity,
	}
}

func (b *boundedBuffer) push(v int) {
	b.mu.Acquire()
	for len(b.items) == b.cap {
		b.notFull.Wait(b.mu)
	}
	b.items = append(b.items, v)
	b.notEmpty.Signal()
	b.mu.Release()
}

func (b *boundedBuffer) pop() int {
	b.mu.Acquire()
	for len(b.items) == 0 {
		b.notEmpty.Wait(b.mu)
	}
	v := b.items[0]
	b.items = b.items[1:]
	b.notFull.Signal()
	b.mu.Release()
	return v
}

func scenarioCondVar(cfg kconfig.Config, logger klog.Logger) error {
	bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	const capacity = 8
	const count = 20

	buf := newBoundedBuffer(capacity)
	done := synch.NewSemaphore(0)
	var got []int

	sched.Create(func(any) {
		for v := 1; v <= count; v++ {
			buf.push(v)
		}
	}, nil)
	sched.Create(func(any) {
		for i := 0; i < count; i++ {
			got = append(got, buf.pop())
		}
		done.Up()
	}, nil)
	done.Down()

	if len(got) != count {
		return fmt.Errorf("condvar: got %d items, want %d", len(got), count)
	}
	logger.Info("condvar scenario complete", klog.F("items", len(got)))
	return nil
}

// scenarioBroadcast wakes every condvar waiter at once and confirms all of
// them resume.
func scenarioBroadcast(cfg kconfig.Config, logger klog.Logger) error {
	bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	mu := synch.NewMutex()
	cv := synch.NewCondVar()
	ready := false
	start := synch.NewSemaphore(0)
	done := synch.NewSemaphore(0)

	const numThreads = 10
	for i := 0; i < numThreads; i++ {
		sched.Create(func(any) {
			mu.Acquire()
			start.Up()
			for !ready {
				cv.Wait(mu)
			}
			mu.Release()
			done.Up()
		}, nil)
	}
	for i := 0; i < numThreads; i++ {
		start.Down()
	}

	mu.Acquire()
	ready = true
	cv.Broadcast()
	mu.Release()

	for i := 0; i < numThreads; i++ {
		done.Down()
	}
	logger.Info("broadcast scenario complete", klog.F("threads", numThreads))
	return nil
}

// scenarioBarrier exercises the Barrier rendezvous type, confirming no
// participant proceeds past Arrive until every one of them has called it.
func scenarioBarrier(cfg kconfig.Config, logger klog.Logger) error {
	bootKernel(cfg, logger, platform.NewTicker(cfg.TickPeriod()))

	const numThreads = 4
	barrier := synch.NewBarrier(numThreads)
	mu := synch.NewMutex()
	arrived := 0
	done := synch.NewSemaphore(0)
	failures := 0

	for i := 0; i < numThreads; i++ {
		sched.Create(func(any) {
			mu.Acquire()
			arrived++
			mu.Release()

			barrier.Arrive()

			mu.Acquire()
			if arrived != numThreads {
				failures++
			}
			mu.Release()
			done.Up()
		}, nil)
	}
	for i := 0; i < numThreads; i++ {
		done.Down()
	}

	if failures != 0 {
		return fmt.Errorf("barrier: %d participants observed a partial rendezvous", failures)
	}
	logger.Info("barrier scenario complete", klog.F("parties", numThreads))
	return nil
}

// scenarioSleep runs the sleep-ordering scenario against a VirtualTicker:
// thread A sleeps 100 ticks, thread B sleeps 200 ticks a moment later, and
// A must wake no later than B, with both wake events observable via log
// entries keyed by NowTicks().
func scenarioSleep(cfg kconfig.Config, logger klog.Logger) error {
	vt := platform.NewVirtualTicker()
	bootKernel(cfg, logger, vt)

	type wakeEvent struct {
		name string
		tick uint64
	}
	events := make(chan wakeEvent, 2)

	sched.Create(func(any) {
		sched.Sleep(100)
		events <- wakeEvent{name: "A", tick: sched.NowTicks()}
	}, nil)
	sched.Yield() // dispatch A so it reaches Sleep(100)

	sched.Create(func(any) {
		sched.Sleep(200)
		events <- wakeEvent{name: "B", tick: sched.NowTicks()}
	}, nil)
	sched.Yield() // dispatch B so it reaches Sleep(200), a moment after A

	if _, sleeping, _, _ := sched.Stats(); sleeping != 2 {
		return fmt.Errorf("sleep: expected both threads sleeping, got %d", sleeping)
	}

	vt.Advance(100)
	sched.Yield() // dispatch A, now past its deadline

	var a, b wakeEvent
	select {
	case a = <-events:
	default:
		return fmt.Errorf("sleep: A never woke by its deadline")
	}

	vt.Advance(100) // now at tick 200
	sched.Yield()   // dispatch B, now past its deadline

	select {
	case b = <-events:
	default:
		return fmt.Errorf("sleep: B never woke by its deadline")
	}

	if a.name != "A" || b.name != "B" {
		return fmt.Errorf("sleep: A must wake no later than B, got %s then %s", a.name, b.name)
	}
	if a.tick < 100 {
		return fmt.Errorf("sleep: A woke at tick %d, before its 100-tick deadline", a.tick)
	}
	if b.tick < 200 {
		return fmt.Errorf("sleep: B woke at tick %d, before its 200-tick deadline", b.tick)
	}
	if a.tick > b.tick {
		return fmt.Errorf("sleep: A's wake tick %d is after B's wake tick %d", a.tick, b.tick)
	}

	logger.Info("sleep scenario complete",
		klog.F("a_woke_at_tick", a.tick),
		klog.F("b_woke_at_tick", b.tick),
	)
	return nil
}
