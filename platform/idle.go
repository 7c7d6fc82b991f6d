package platform

// ChanIdleLoop is the reference IdleLoop: halt blocks on a channel until
// Wake is called, standing in for "wait for interrupt". Wake is safe to
// call from any goroutine, including the tick source.
type ChanIdleLoop struct {
	wake chan struct{}
}

// NewChanIdleLoop constructs an idle loop with no pending wake.
func NewChanIdleLoop() *ChanIdleLoop {
	return &ChanIdleLoop{wake: make(chan struct{}, 1)}
}

// Halt blocks until Wake is called at least once since the last Halt,
// standing in for "wait for interrupt". The four-step idle body (enable;
// halt; disable; yield) is composed by the scheduler, which alone knows
// how to request a reschedule.
func (c *ChanIdleLoop) Halt() {
	<-c.wake
}

// Wake unblocks a pending or future Halt call.
func (c *ChanIdleLoop) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
