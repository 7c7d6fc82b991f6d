package synch

import "github.com/Alientation/AlienOS/sched"

// Mutex is a recursive mutex: the owning thread may acquire it repeatedly
// without deadlocking itself, decomposed as a binary semaphore plus an
// owner/depth pair.
type Mutex struct {
	sem   *Semaphore
	owner sched.ThreadID
	held  bool
	depth int
}

// NewMutex constructs an unheld mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: NewSemaphore(1)}
}

// Acquire blocks until the mutex is held by the calling thread. If the
// calling thread already owns it, this only increments the recursion
// depth.
func (m *Mutex) Acquire() {
	prior := sched.SaveIRQ()
	me := sched.CurrentIDLocked()
	if m.held && m.owner == me {
		m.depth++
		sched.RestoreIRQ(prior)
		return
	}
	sched.RestoreIRQ(prior)

	m.sem.Down()

	prior = sched.SaveIRQ()
	m.owner = me
	m.held = true
	m.depth = 1
	sched.RestoreIRQ(prior)
}

// TryAcquire is Acquire's non-blocking counterpart: it returns false
// instead of blocking when another thread holds the mutex.
func (m *Mutex) TryAcquire() bool {
	prior := sched.SaveIRQ()
	me := sched.CurrentIDLocked()
	if m.held && m.owner == me {
		m.depth++
		sched.RestoreIRQ(prior)
		return true
	}
	sched.RestoreIRQ(prior)

	if !m.sem.TryDown() {
		return false
	}

	prior = sched.SaveIRQ()
	m.owner = me
	m.held = true
	m.depth = 1
	sched.RestoreIRQ(prior)
	return true
}

// Release decrements the recursion depth, fully releasing the mutex once
// it reaches zero. Calling Release when the calling thread is not the
// owner is a fatal invariant violation.
func (m *Mutex) Release() {
	prior := sched.SaveIRQ()
	me := sched.CurrentIDLocked()
	if !m.held || m.owner != me {
		sched.RestoreIRQ(prior)
		sched.Fatalf("synch: release of mutex not held by calling thread %d", me)
		return
	}
	m.depth--
	last := m.depth == 0
	if last {
		m.held = false
		m.owner = 0
	}
	sched.RestoreIRQ(prior)
	if last {
		m.sem.Up()
	}
}

// releaseForWaitLocked fully releases the mutex regardless of recursion
// depth, assuming the caller already holds the critical section. Used only
// by CondVar.Wait, which must give up the mutex atomically with enqueuing
// the waiting thread on the condvar.
func (m *Mutex) releaseForWaitLocked() {
	m.held = false
	m.owner = 0
	m.depth = 0
	m.sem.upLocked()
}

// IsHeldByCurrent reports whether the calling thread currently owns the
// mutex, for assertions in tests.
func (m *Mutex) IsHeldByCurrent() bool {
	prior := sched.SaveIRQ()
	defer sched.RestoreIRQ(prior)
	return m.held && m.owner == sched.CurrentIDLocked()
}
