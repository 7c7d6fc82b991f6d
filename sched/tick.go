package sched

// This file implements the tick handler. It is split across two entry
// points for a reason a hardware ISR never faces:
// the background tick source runs on its own goroutine, concurrently with
// whichever thread is logically "running", and Go gives no portable way for
// one goroutine to suspend another mid-instruction the way a hardware timer
// interrupt suspends a CPU core. So the handler's six steps are split:
//
//   - backgroundTick (called every period, off the running thread) performs
//     the parts that only touch scheduler bookkeeping: waking sleepers whose
//     deadline has arrived, and reclaiming zombies. It never switches who is
//     running.
//   - schedulePass (called by the running thread itself, from Yield, Sleep,
//     Block or thread exit) performs the full six-step body, including the
//     actual context switch, since only the running thread's own goroutine
//     can safely park itself.
//
// A thread that never calls into sched or synch will not be preempted mid-
// loop; CheckPreempt gives compute-bound thread bodies a cooperative point
// to honor a pending reschedule without waiting for their own next blocking
// call.

// wakeSleepersLocked is tick handler step 2. Caller holds the lock.
func (s *state) wakeSleepersLocked(now uint64) {
	t := s.sleepHead
	for t != nil {
		next := t.qNext
		if t.wake <= now {
			s.sleepRemove(t)
			t.status = Ready
			s.readyPushHead(t)
		}
		t = next
	}
}

// reclaimZombiesLocked is tick handler step 3: every zombie other than the
// thread still installed as current (it cannot be reclaimed until some
// later pass removes it from "current"). Caller holds the lock.
func (s *state) reclaimZombiesLocked() {
	t := s.zombieHead
	for t != nil {
		next := t.qNext
		if t != s.current {
			s.zombieRemove(t)
			s.allRemove(t)
			s.stacks.Free(t.stackAddr)
			if forgetter, ok := s.sw.(interface{ Forget(uint32) }); ok {
				forgetter.Forget(uint32(t.id))
			}
		}
		t = next
	}
}

// chooseNextLocked is tick handler step 4. The idle thread is never
// enqueued on the ready list; it is the fallback whenever the ready queue
// is empty and the outgoing thread is not staying Running. Caller holds
// the lock.
func (s *state) chooseNextLocked() *thread {
	if s.readyLen > 0 {
		return s.readyPopTail()
	}
	if s.current.status == Running {
		return s.current
	}
	return s.idleThread
}

// reclassifyOutgoingLocked is tick handler step 5: place the outgoing
// thread on the list matching the status it already carries (set by the
// caller before yielding, for Sleep/Block/exit; left at Running for a
// plain voluntary Yield). Caller holds the lock.
func (s *state) reclassifyOutgoingLocked(outgoing *thread) {
	switch outgoing.status {
	case Running:
		outgoing.status = Ready
		if outgoing != s.idleThread {
			s.readyPushHead(outgoing)
		}
	case Sleeping:
		s.sleepAppend(outgoing)
	case Zombie:
		s.zombieAppend(outgoing)
	case Blocked:
		// already linked onto a synch primitive's own wait queue.
	default:
		s.fatalf("sched: outgoing thread %d has invalid status %v", outgoing.id, outgoing.status)
	}
}

// schedulePass runs the full tick handler body. It must only be called by
// the goroutine of the thread currently installed as current — Yield,
// Sleep, Block and thread exit all fall through to it after recording
// whatever status change they need reclassified in step 5.
func (s *state) schedulePass() {
	prior := s.lockIRQ()
	now := s.tick.Now()

	// Step 1 (save current's context) is implicit: the goroutine retains
	// its own stack and registers simply by parking, below.
	s.wakeSleepersLocked(now)
	s.reclaimZombiesLocked()

	outgoing := s.current
	chosen := s.chooseNextLocked()
	switched := chosen != outgoing
	if switched {
		s.reclassifyOutgoingLocked(outgoing)
		chosen.status = Running
		s.current = chosen
	}
	// Read under the lock: once Resume hands the baton on, s may be reset
	// (ResetForTest) before this goroutine gets to park.
	sw := s.sw
	s.unlockIRQ(prior)

	if switched {
		sw.Resume(uint32(chosen.id))
		sw.Park(uint32(outgoing.id))
	}
}

// backgroundTick is tick handler steps 2-3 only, invoked by the platform
// tick source once per period. It never switches who is running; it only
// keeps the ready queue current so that the running thread's next voluntary
// checkpoint (or the idle loop, once woken) sees up-to-date state.
func (s *state) backgroundTick() {
	s.mu.Lock()
	if !s.initialized {
		// A tick already in flight when ResetForTest tore the state down.
		s.mu.Unlock()
		return
	}
	prior := s.irq.SaveAndDisable()
	now := s.tick.Now()
	s.wakeSleepersLocked(now)
	s.reclaimZombiesLocked()
	s.irq.Restore(prior)
	idle := s.idle
	s.mu.Unlock()
	idle.Wake()
}
