package synch

// Barrier is an N-party rendezvous: Arrive blocks the calling thread until
// N threads have all called it, then releases all N together, and resets
// for reuse. It packages the two-semaphore turnstile rendezvous test
// harnesses otherwise wire by hand (a start-semaphore every arriving
// thread signals, a done-semaphore the coordinator signals back) as a
// reusable type; it is built entirely from Mutex and Semaphore rather
// than being a new primitive kind.
type Barrier struct {
	n int

	mu    *Mutex
	count int

	turnstile1 *Semaphore
	turnstile2 *Semaphore
}

// NewBarrier constructs a barrier for n parties. n < 1 is treated as 1.
func NewBarrier(n int) *Barrier {
	if n < 1 {
		n = 1
	}
	return &Barrier{
		n:          n,
		mu:         NewMutex(),
		turnstile1: NewSemaphore(0),
		turnstile2: NewSemaphore(1),
	}
}

// Arrive blocks until n threads, including the caller, have called Arrive.
func (b *Barrier) Arrive() {
	b.mu.Acquire()
	b.count++
	if b.count == b.n {
		b.turnstile2.Down()
		b.turnstile1.Up()
	}
	b.mu.Release()

	b.turnstile1.Down()
	b.turnstile1.Up()

	b.mu.Acquire()
	b.count--
	if b.count == 0 {
		b.turnstile1.Down()
		b.turnstile2.Up()
	}
	b.mu.Release()

	b.turnstile2.Down()
	b.turnstile2.Up()
}
