package sched

import "context"

// MainInit brings the scheduler up: installs the calling goroutine as
// thread 0 (the bootstrap thread, Running), creates the idle thread (id 1),
// and starts the background tick source. It must be called exactly once,
// before any other function in this package.
func MainInit(cfg Config) {
	if s.initialized {
		s.fatalf("sched: MainInit called more than once")
		return
	}
	cfg = resolveConfig(cfg)
	s = state{
		irq:       cfg.Platform.IRQ,
		tick:      cfg.Platform.Tick,
		sw:        cfg.Platform.Switch,
		idle:      cfg.Platform.Idle,
		panic:     cfg.Platform.Panic,
		stacks:    cfg.Stacks,
		stackSize: cfg.StackSize,
		all:       make(map[ThreadID]*thread),
	}

	boot := &thread{id: 0, status: Running}
	s.allAppend(boot)
	s.current = boot
	s.nextID = 1

	idle := s.newThread(idleEntry, nil)
	s.idleThread = idle
	// Deliberately not pushed to the ready queue: the idle thread is never
	// enqueued, only ever reached via chooseNextLocked's fallback branch.

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.initialized = true
	s.tick.Run(ctx, s.backgroundTick)
}

func idleEntry(_ any) {
	for {
		s.irq.Enable()
		s.idle.Halt()
		s.irq.Disable()
		Yield()
	}
}

// allocID hands out the next thread id. Caller holds the lock.
func (s *state) allocID() ThreadID {
	if s.nextID == ^ThreadID(0) {
		s.fatalf("sched: thread id space exhausted")
	}
	id := s.nextID
	s.nextID++
	return id
}

// newThread allocates a stack, links the descriptor onto the all-threads
// list, and seeds its goroutine, without touching the ready queue — Create
// and MainInit's idle setup differ only in whether they enqueue it. Caller
// holds the lock.
func (s *state) newThread(entry func(arg any), arg any) *thread {
	id := s.allocID()
	addr, mem := s.stacks.Alloc(s.stackSize)
	t := &thread{id: id, status: Ready, stackAddr: addr, stackMem: mem}
	s.allAppend(t)
	s.sw.Seed(uint32(id), func() {
		entry(arg)
		s.threadExit()
	})
	return t
}

// Create allocates a new thread descriptor and stack, seeds its entry
// point, and places it at the head of the ready queue.
func Create(entry func(arg any), arg any) ThreadID {
	prior := s.lockIRQ()
	t := s.newThread(entry, arg)
	s.readyPushHead(t)
	s.unlockIRQ(prior)
	return t.id
}

// Yield voluntarily gives up the remainder of the current thread's time
// slice, running the full tick handler body immediately.
func Yield() {
	s.schedulePass()
}

// Sleep marks the current thread Sleeping until at least now+ticks, then
// yields. A zero tick count still yields once: the thread goes onto the
// sleeping list with a deadline of now and is made Ready again by the next
// pass that wakes sleepers (a tick, or another thread's scheduling pass).
func Sleep(ticks uint64) {
	prior := s.lockIRQ()
	s.current.wake = s.tick.Now() + ticks
	s.current.status = Sleeping
	s.unlockIRQ(prior)
	s.schedulePass()
}

// CheckPreempt yields if another thread is ready to run, without forcing a
// reschedule when nothing is waiting. Long-running compute loops that never
// otherwise call into sched or synch should call this periodically to get
// bounded-latency preemption; see the package doc (sched.go) for why
// automatic, fully asynchronous preemption is not available.
func CheckPreempt() {
	prior := s.lockIRQ()
	pending := s.readyLen > 0
	s.unlockIRQ(prior)
	if pending {
		Yield()
	}
}

// threadExit is the shim every seeded goroutine runs after its entry point
// returns: mark Zombie, yield one last time. The goroutine parks forever
// afterward; it is never Resumed again once reclaimed.
func (s *state) threadExit() {
	prior := s.lockIRQ()
	s.current.status = Zombie
	s.unlockIRQ(prior)
	s.schedulePass()
}

// CurrentID returns the identifier of the calling thread.
func CurrentID() ThreadID {
	prior := s.lockIRQ()
	id := s.current.id
	s.unlockIRQ(prior)
	return id
}

// CurrentIDLocked returns the current thread's id. The caller must already
// hold the critical section (via SaveIRQ) — synch uses this to compare
// against an owner field without acquiring the lock a second time.
func CurrentIDLocked() ThreadID {
	return s.current.id
}

// Fatalf routes a fatal invariant violation (release-by-non-owner, queue
// corruption, and similar) through the configured panic routine.
func Fatalf(format string, args ...any) {
	s.fatalf(format, args...)
}

// ResetForTest clears all scheduler state, stopping the background tick
// source first, so a test binary can call MainInit more than once across
// its test functions. Production code calls MainInit exactly once, at boot.
func ResetForTest() {
	if s.stop != nil {
		s.stop()
	}
	s = state{}
}

// NowTicks returns the current tick count.
func NowTicks() uint64 {
	return s.tick.Now()
}

// Stats reports the size of each queue and the total thread count, for
// tests and diagnostics.
func Stats() (ready, sleeping, zombie, all int) {
	prior := s.lockIRQ()
	ready, sleeping, zombie, all = s.readyLen, s.sleepLen, s.zombieLen, len(s.all)
	s.unlockIRQ(prior)
	return
}

// SaveIRQ acquires the shared critical section and disables interrupts,
// returning the prior enabled state. synch uses this for its own fast-path
// critical sections (the ones that mutate a primitive's count or wait
// queue without needing a full reschedule); it must be paired with
// RestoreIRQ and must never be held across a blocking call into Block.
func SaveIRQ() bool {
	return s.lockIRQ()
}

// RestoreIRQ releases the critical section acquired by SaveIRQ.
func RestoreIRQ(prior bool) {
	s.unlockIRQ(prior)
}

// Block marks the current thread Blocked on the primitive identified by
// (kind, handle), invokes enqueue with its id, releases the critical
// section, and yields. The caller must already hold the critical section,
// obtained via SaveIRQ — this is what lets synch decrement a semaphore's
// count (or a mutex's, or check a condvar's predicate) and enqueue the
// blocking thread as one continuous atomic step, with no window in which a
// concurrent Up/signal could run and find the waiter not yet enqueued. It
// is the single entry point synch uses for every blocking wait.
func Block(kind WaitKind, handle uintptr, prior bool, enqueue func(id ThreadID)) {
	s.current.status = Blocked
	s.current.waitKind = kind
	s.current.waitHandle = handle
	id := s.current.id
	enqueue(id)
	s.unlockIRQ(prior)
	s.schedulePass()
}

// Unblock transitions a Blocked thread back to Ready and pushes it to the
// head of the ready queue. The caller must already hold the critical
// section (via SaveIRQ); it is called from inside a synch primitive's own
// critical section (up, signal, broadcast).
func Unblock(id ThreadID) {
	t, ok := s.all[id]
	if !ok || t.status != Blocked {
		s.fatalf("sched: unblock of thread %d which is not Blocked", id)
		return
	}
	t.status = Ready
	t.waitKind = WaitNone
	t.waitHandle = 0
	s.readyPushHead(t)
}
