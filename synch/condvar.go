package synch

import "github.com/Alientation/AlienOS/sched"

// CondVar is a condition variable, always used paired with a Mutex the
// caller holds across Wait. Signal/Broadcast are not atomic with the
// predicate becoming true — callers must still loop on their predicate.
type CondVar struct {
	handle  uintptr
	waiters []sched.ThreadID
}

// NewCondVar constructs a condition variable with no waiters.
func NewCondVar() *CondVar {
	return &CondVar{handle: nextHandle()}
}

// Wait requires the caller to hold m. It marks the calling thread Blocked,
// enqueues it on this condvar, and releases m — all within one
// interrupts-disabled section, so a concurrent Signal that runs as soon as
// interrupts re-enable is guaranteed to find the waiter already enqueued.
// On return, m has been re-acquired.
func (c *CondVar) Wait(m *Mutex) {
	prior := sched.SaveIRQ()
	sched.Block(sched.WaitCondVar, c.handle, prior, func(id sched.ThreadID) {
		c.waiters = append(c.waiters, id)
		m.releaseForWaitLocked()
	})
	m.Acquire()
}

// Signal unblocks the longest-waiting thread, if any.
func (c *CondVar) Signal() {
	prior := sched.SaveIRQ()
	if len(c.waiters) > 0 {
		id := c.waiters[0]
		c.waiters = c.waiters[1:]
		sched.Unblock(id)
	}
	sched.RestoreIRQ(prior)
}

// Broadcast unblocks every waiter, in FIFO arrival order.
func (c *CondVar) Broadcast() {
	prior := sched.SaveIRQ()
	pending := c.waiters
	c.waiters = nil
	sched.RestoreIRQ(prior)

	for _, id := range pending {
		prior := sched.SaveIRQ()
		sched.Unblock(id)
		sched.RestoreIRQ(prior)
	}
}
