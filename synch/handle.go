// Package synch implements AlienOS's blocking synchronization primitives —
// counting semaphore, recursive mutex, condition variable — on top of
// sched's block/unblock hooks and its shared interrupts-disabled critical
// section (sched.SaveIRQ / sched.RestoreIRQ). Every public entry point
// disables interrupts on entry and restores the prior state on exit;
// nested calls (condvar.Wait calling into a mutex) compose by passing the
// already-saved prior state down instead of disabling twice.
package synch

import "sync/atomic"

var handleCounter uint64

// nextHandle hands out a small dense identity used to tag a Blocked
// thread's waitHandle field. It carries no memory meaning, only identity
// (sched never dereferences it), so a plain counter serves in place of a
// raw primitive address.
func nextHandle() uintptr {
	return uintptr(atomic.AddUint64(&handleCounter, 1))
}
