package platform

import "sync"

// SimpleIRQ is the reference IRQ implementation: a single boolean guarded
// by a mutex. This is sufficient for the single-logical-CPU model this
// kernel targets: the context-switch baton (ContextSwitch)
// already guarantees only one thread's goroutine makes progress at a time,
// so the enabled flag only needs to be safe against the background tick
// source racing a foreground Disable/Restore, not against genuine SMP
// contention.
type SimpleIRQ struct {
	mu      sync.Mutex
	enabled bool
}

// NewSimpleIRQ constructs an IRQ starting in the enabled state.
func NewSimpleIRQ() *SimpleIRQ {
	return &SimpleIRQ{enabled: true}
}

func (s *SimpleIRQ) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
}

func (s *SimpleIRQ) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

func (s *SimpleIRQ) SaveAndDisable() (prior bool) {
	s.mu.Lock()
	prior = s.enabled
	s.enabled = false
	s.mu.Unlock()
	return prior
}

func (s *SimpleIRQ) Restore(prior bool) {
	s.mu.Lock()
	s.enabled = prior
	s.mu.Unlock()
}

// Enabled reports the current flag value, for tests and diagnostics.
func (s *SimpleIRQ) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
