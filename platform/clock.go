package platform

import (
	"context"
	"sync/atomic"
	"time"
)

// Ticker is the reference TickSource: a time.Ticker driving onTick at a
// fixed period, with Now backed by an atomic counter incremented once per
// period. Period defaults to 10ms, the PIT's usual ~100 Hz.
type Ticker struct {
	Period time.Duration
	now    atomic.Uint64
}

// NewTicker constructs a Ticker at the given period. A zero period defaults
// to 10ms (100 Hz).
func NewTicker(period time.Duration) *Ticker {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &Ticker{Period: period}
}

// Now returns the current tick count.
func (t *Ticker) Now() uint64 {
	return t.now.Load()
}

// Run starts the periodic pump and returns once it is registered; the pump
// itself runs on a background goroutine until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context, onTick func()) {
	tk := time.NewTicker(t.Period)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				t.now.Add(1)
				onTick()
			}
		}
	}()
}

// VirtualTicker is a deterministic TickSource for tests: it never fires on
// its own. Advance moves the clock forward and invokes the last
// onTick registered by Run, once per tick, synchronously on the caller's
// goroutine. This makes sleep-ordering scenarios reproducible instead of
// timing-dependent.
type VirtualTicker struct {
	now    atomic.Uint64
	onTick atomic.Pointer[func()]
}

// NewVirtualTicker constructs a stopped virtual clock starting at tick 0.
func NewVirtualTicker() *VirtualTicker {
	return &VirtualTicker{}
}

// Now returns the current virtual tick count.
func (v *VirtualTicker) Now() uint64 {
	return v.now.Load()
}

// Run registers onTick for later Advance calls and returns immediately;
// there is no background pump to cancel, so ctx is unused.
func (v *VirtualTicker) Run(_ context.Context, onTick func()) {
	v.onTick.Store(&onTick)
}

// Advance moves the virtual clock forward by n ticks, invoking the
// registered onTick callback once per tick, in order.
func (v *VirtualTicker) Advance(n uint64) {
	fn := v.onTick.Load()
	for i := uint64(0); i < n; i++ {
		v.now.Add(1)
		if fn != nil {
			(*fn)()
		}
	}
}
