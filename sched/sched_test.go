package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/Alientation/AlienOS/platform"
)

func newTestScheduler(t *testing.T) *platform.VirtualTicker {
	t.Helper()
	ResetForTest()
	vt := platform.NewVirtualTicker()
	MainInit(Config{Platform: platform.Bundle{Tick: vt}})
	return vt
}

func TestCreateAndYieldRunsEveryThread(t *testing.T) {
	newTestScheduler(t)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)

	spawn := func(name string) {
		Create(func(any) {
			for i := 0; i < 3; i++ {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				Yield()
			}
			done <- struct{}{}
		}, nil)
	}

	spawn("a")
	spawn("b")

	for i := 0; i < 20; i++ {
		Yield()
	}
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	counts := map[string]int{}
	for _, name := range order {
		counts[name]++
	}
	if counts["a"] != 3 || counts["b"] != 3 {
		t.Fatalf("expected 3 steps each, got %v (order=%v)", counts, order)
	}
}

func TestSleepWakesOnTick(t *testing.T) {
	vt := newTestScheduler(t)

	woke := make(chan uint64, 1)
	Create(func(any) {
		Sleep(5)
		woke <- NowTicks()
	}, nil)

	Yield() // dispatch the new thread so it reaches Sleep(5)

	if _, sleeping, _, _ := Stats(); sleeping != 1 {
		t.Fatalf("expected 1 sleeping thread, got %d", sleeping)
	}

	vt.Advance(5)
	Yield() // dispatch the now-ready sleeper so it can report in

	select {
	case now := <-woke:
		if now < 5 {
			t.Fatalf("woke at tick %d, before its deadline", now)
		}
	case <-time.After(time.Second):
		t.Fatal("sleeping thread never woke")
	}
}

// wakeEvent is one log entry for TestSleepOrdering, keyed by the tick at
// which the sleeper observed its own wakeup.
type wakeEvent struct {
	name string
	tick uint64
}

func TestSleepOrdering(t *testing.T) {
	vt := newTestScheduler(t)

	var mu sync.Mutex
	var events []wakeEvent
	record := func(name string) {
		mu.Lock()
		events = append(events, wakeEvent{name: name, tick: NowTicks()})
		mu.Unlock()
	}

	doneA := make(chan struct{})
	doneB := make(chan struct{})

	Create(func(any) {
		Sleep(100)
		record("A")
		close(doneA)
	}, nil)
	Yield() // dispatch A so it reaches Sleep(100)

	Create(func(any) {
		Sleep(200)
		record("B")
		close(doneB)
	}, nil)
	Yield() // dispatch B so it reaches Sleep(200), "a moment later" than A

	if _, sleeping, _, _ := Stats(); sleeping != 2 {
		t.Fatalf("expected both A and B sleeping, got %d", sleeping)
	}

	vt.Advance(100)
	Yield() // dispatch A, now past its deadline

	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("A never woke by its deadline")
	}

	vt.Advance(100) // now at tick 200
	Yield()         // dispatch B, now past its deadline

	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("B never woke by its deadline")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected exactly 2 wake events, got %v", events)
	}
	if events[0].name != "A" || events[1].name != "B" {
		t.Fatalf("A must wake no later than B, got %v", events)
	}
	if events[0].tick < 100 {
		t.Fatalf("A woke at tick %d, before its 100-tick deadline", events[0].tick)
	}
	if events[1].tick < 200 {
		t.Fatalf("B woke at tick %d, before its 200-tick deadline", events[1].tick)
	}
	if events[0].tick > events[1].tick {
		t.Fatalf("A's wake tick %d is after B's wake tick %d", events[0].tick, events[1].tick)
	}
}

func TestSleepDoesNotWakeEarly(t *testing.T) {
	vt := newTestScheduler(t)

	Create(func(any) {
		Sleep(10)
	}, nil)
	Yield()

	vt.Advance(9)
	if _, sleeping, _, _ := Stats(); sleeping != 1 {
		t.Fatalf("thread woke before its deadline: sleeping=%d", sleeping)
	}

	vt.Advance(1)
	if _, sleeping, _, _ := Stats(); sleeping != 0 {
		t.Fatalf("thread failed to wake at its deadline: sleeping=%d", sleeping)
	}
}

func TestThreadExitReclaimedAsZombie(t *testing.T) {
	newTestScheduler(t)

	exited := make(chan struct{})
	Create(func(any) {
		close(exited)
	}, nil)

	Yield() // run the thread to completion (it exits immediately)
	<-exited

	if _, _, zombie, _ := Stats(); zombie != 1 {
		t.Fatalf("expected 1 zombie immediately after exit, got %d", zombie)
	}

	Yield() // next pass reclaims it, since it's no longer "current"
	if _, _, zombie, all := Stats(); zombie != 0 {
		t.Fatalf("expected zombie reclaimed, got zombie=%d all=%d", zombie, all)
	}
}

func TestBlockAndUnblockRoundTrip(t *testing.T) {
	newTestScheduler(t)

	var queue []ThreadID
	resumed := make(chan struct{})

	blockerID := Create(func(any) {
		prior := SaveIRQ()
		Block(WaitSemaphore, 0x1234, prior, func(id ThreadID) {
			queue = append(queue, id)
		})
		close(resumed)
	}, nil)

	Yield() // dispatch the thread into Block

	if _, _, _, all := Stats(); all != 3 { // boot, idle, blocker
		t.Fatalf("expected 3 threads, got %d", all)
	}
	if len(queue) != 1 || queue[0] != blockerID {
		t.Fatalf("expected blocker enqueued, got %v", queue)
	}

	prior := SaveIRQ()
	Unblock(blockerID)
	RestoreIRQ(prior)

	Yield() // dispatch the now-ready thread so it can finish

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("unblocked thread never resumed")
	}
}

func TestCheckPreemptYieldsOnlyWhenReady(t *testing.T) {
	newTestScheduler(t)

	ran := make(chan struct{})
	Create(func(any) {
		close(ran)
	}, nil)

	CheckPreempt() // ready queue has the new thread; this must dispatch it

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("CheckPreempt did not yield despite a ready thread")
	}
}
