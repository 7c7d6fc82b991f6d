package platform

import "sync"

// GoroutineSwitch is the reference ContextSwitch: each thread id owns an
// unbuffered gate channel. Seed parks a fresh goroutine on the gate before
// running entry; Park blocks the calling goroutine on the same gate; Resume
// sends on it. Because the gate is unbuffered, a Resume only completes once
// its target is actually parked (or seeded and not yet started), which is
// exactly the "exactly one thread runs at a time" discipline a single
// logical CPU enforces in hardware.
type GoroutineSwitch struct {
	mu    sync.Mutex
	gates map[uint32]chan struct{}
}

// NewGoroutineSwitch constructs an empty GoroutineSwitch.
func NewGoroutineSwitch() *GoroutineSwitch {
	return &GoroutineSwitch{gates: make(map[uint32]chan struct{})}
}

func (g *GoroutineSwitch) gate(id uint32) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

// Seed starts the goroutine that will run entry, parked until the first
// Resume(id). This stands in for seeding a fresh stack so that the first
// context switch into it lands at entry.
func (g *GoroutineSwitch) Seed(id uint32, entry func()) {
	ch := g.gate(id)
	go func() {
		<-ch
		entry()
	}()
}

// Park blocks the calling goroutine until the next Resume(id). It must be
// called by the thread's own goroutine.
func (g *GoroutineSwitch) Park(id uint32) {
	<-g.gate(id)
}

// Resume wakes the goroutine parked on id.
func (g *GoroutineSwitch) Resume(id uint32) {
	g.gate(id) <- struct{}{}
}

// Forget releases the gate for id, e.g. after zombie reclamation. Safe to
// skip; it only frees the map entry.
func (g *GoroutineSwitch) Forget(id uint32) {
	g.mu.Lock()
	delete(g.gates, id)
	g.mu.Unlock()
}
