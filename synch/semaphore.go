package synch

import "github.com/Alientation/AlienOS/sched"

// Semaphore is a counting semaphore with a signed count. Down always
// decrements, blocking the caller iff the result goes negative; TryDown
// only decrements when the count is strictly positive. The count's
// magnitude while negative always equals the number of blocked waiters.
type Semaphore struct {
	handle  uintptr
	count   int64
	waiters []sched.ThreadID
}

// NewSemaphore constructs a semaphore with the given initial count.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{handle: nextHandle(), count: n}
}

// Down decrements the count; if the result is negative, the calling thread
// blocks until a matching Up accounts for it. FIFO among waiters.
func (s *Semaphore) Down() {
	prior := sched.SaveIRQ()
	s.count--
	if s.count < 0 {
		sched.Block(sched.WaitSemaphore, s.handle, prior, func(id sched.ThreadID) {
			s.waiters = append(s.waiters, id)
		})
		return
	}
	sched.RestoreIRQ(prior)
}

// TryDown decrements and returns true iff the count was strictly positive;
// otherwise it returns false without blocking or changing the count.
func (s *Semaphore) TryDown() bool {
	prior := sched.SaveIRQ()
	defer sched.RestoreIRQ(prior)
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// upLocked performs Up's work assuming the caller already holds the
// critical section. CondVar.Wait needs this: releasing the paired mutex
// must happen atomically with the waiter enqueuing itself on the condvar,
// which means it cannot acquire its own fresh critical section.
func (s *Semaphore) upLocked() {
	s.count++
	if len(s.waiters) > 0 {
		id := s.waiters[0]
		s.waiters = s.waiters[1:]
		sched.Unblock(id)
	}
}

// Up increments the count and, if any thread is waiting, unblocks the
// longest-waiting one.
func (s *Semaphore) Up() {
	prior := sched.SaveIRQ()
	s.upLocked()
	sched.RestoreIRQ(prior)
}

// Count returns the current signed count, for tests and diagnostics.
func (s *Semaphore) Count() int64 {
	prior := sched.SaveIRQ()
	defer sched.RestoreIRQ(prior)
	return s.count
}
