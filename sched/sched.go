// Package sched implements AlienOS's thread scheduler: thread
// descriptors, the per-state queues, and the timer-driven scheduling
// path, multiplexing a single logical CPU among kernel-mode threads
// using a periodic tick.
//
// One caveat has no hardware analogue: Go gives no way to suspend a
// goroutine mid-instruction from outside, so the periodic tick performs
// only bookkeeping (waking sleepers, reclaiming zombies) and the actual
// switch happens on the running thread's own goroutine at its next call
// into sched or synch: Yield, Sleep, a blocking primitive, or
// CheckPreempt. A thread body that never makes such a call is never
// preempted; compute-bound loops must call CheckPreempt to be preempted
// with bounded latency. See tick.go for how the scheduling pass is split
// across the two entry points.
//
// The architecture-specific stack-swap, the tick source, the
// interrupt enable/disable primitives, and the idle loop's wait-for-
// interrupt step are all external collaborators, consumed only through the
// platform package's interfaces (see platform.Bundle).
package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alientation/AlienOS/platform"
)

// ThreadID is a small dense thread identifier. 0 is reserved for the
// bootstrap thread, 1 for the idle thread.
type ThreadID uint32

// Status is one of the five scheduler states a thread occupies.
type Status int

const (
	Ready Status = iota
	Running
	Sleeping
	Blocked
	Zombie
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Blocked:
		return "Blocked"
	case Zombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// WaitKind tags which kind of primitive a Blocked thread is waiting on, for
// diagnostics; sched never interprets the handle itself.
type WaitKind int

const (
	WaitNone WaitKind = iota
	WaitSemaphore
	WaitCondVar
)

// DefaultStackSize is the default owned stack buffer size.
const DefaultStackSize = 16 * 1024

// DefaultTickHz matches a PIT programmed at 100 Hz.
const DefaultTickHz = 100

// thread is the kernel's thread descriptor. It carries two
// intrusive list hooks: allPrev/allNext (the global "all threads" list) and
// qPrev/qNext (whichever of the ready, sleeping or zombie queues it
// currently inhabits, per the invariant that a thread sits on at most one
// queue at a time). Primitive wait queues are kept by synch as lists of
// ThreadIDs and do not use these hooks.
type thread struct {
	id     ThreadID
	status Status

	wake uint64 // valid iff status == Sleeping

	waitKind   WaitKind // valid iff status == Blocked
	waitHandle uintptr  // opaque handle of the primitive being waited on

	stackAddr uintptr
	stackMem  []byte

	allPrev, allNext *thread
	qPrev, qNext     *thread
}

// StackAllocator provides the backing memory for a thread's owned stack.
// The default implementation uses plain Go allocation; Config.Stacks lets
// a caller wire in the heap package's allocator instead, without sched
// importing heap directly (that import would cycle back through heap's
// own internal mutex, which is a synch.Mutex, and synch depends on sched
// for its block/unblock hooks).
type StackAllocator interface {
	Alloc(n int) (addr uintptr, mem []byte)
	Free(addr uintptr)
}

type bumpStackAllocator struct{ next uintptr }

func (b *bumpStackAllocator) Alloc(n int) (uintptr, []byte) {
	addr := b.next
	b.next += uintptr(n)
	return addr, make([]byte, n)
}

func (b *bumpStackAllocator) Free(uintptr) {}

// state is the module-private, process-wide scheduler state: current
// thread, the per-state queues, thread id allocation, and the platform
// collaborators. All mutation happens with irq disabled.
type state struct {
	// mu is the Go-level realization of "interrupts disabled": on a single
	// CPU, disabling interrupts is by itself sufficient mutual exclusion.
	// The background tick goroutine runs concurrently with whichever
	// thread's goroutine is logically "running", so sched needs an actual
	// mutex underneath the logical irq flag; lockIRQ/unlockIRQ always
	// manage the two together. synch reuses this same lock (via SaveIRQ /
	// RestoreIRQ) for its own critical sections: one global interrupt
	// flag shared by every subsystem.
	mu  sync.Mutex
	irq platform.IRQ

	tick   platform.TickSource
	sw     platform.ContextSwitch
	idle   platform.IdleLoop
	panic  platform.Panic
	stacks StackAllocator

	stackSize int

	nextID     ThreadID
	current    *thread
	idleThread *thread
	all        map[ThreadID]*thread

	allHead, allTail *thread

	readyHead, readyTail   *thread
	sleepHead, sleepTail   *thread
	zombieHead, zombieTail *thread
	readyLen, sleepLen, zombieLen int

	initialized bool
	stop        context.CancelFunc
}

// lockIRQ acquires the shared critical section and disables interrupts,
// returning the prior logical enabled state (for Restore). It must always
// be paired with unlockIRQ, and must never be held across a Park/Resume
// handoff — schedulePass releases it before touching the context switch.
func (s *state) lockIRQ() bool {
	s.mu.Lock()
	return s.irq.SaveAndDisable()
}

func (s *state) unlockIRQ(prior bool) {
	s.irq.Restore(prior)
	s.mu.Unlock()
}

var s state

// Config configures MainInit. Zero values take the documented defaults.
type Config struct {
	StackSize int
	Platform  platform.Bundle
	Stacks    StackAllocator
}

func resolveConfig(cfg Config) Config {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	cfg.Platform = cfg.Platform.WithDefaults()
	if cfg.Stacks == nil {
		cfg.Stacks = &bumpStackAllocator{next: 0x1000}
	}
	return cfg
}

func (s *state) fatalf(format string, args ...any) {
	if s.panic != nil {
		s.panic(format, args...)
		return
	}
	panic(fmt.Sprintf(format, args...))
}
