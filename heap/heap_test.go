package heap

import (
	"testing"

	"github.com/Alientation/AlienOS/platform"
	"github.com/Alientation/AlienOS/sched"
)

// setupScheduler brings up a fresh scheduler, which the heap's internal
// mutex needs (it blocks and unblocks threads through sched, exactly like
// any other synch.Mutex user).
func setupScheduler(t *testing.T) {
	t.Helper()
	sched.ResetForTest()
	sched.MainInit(sched.Config{Platform: platform.Bundle{Tick: platform.NewVirtualTicker()}})
}

const testKernelEnd = 0x100000 // 1 MiB

func testMemoryMap() platform.MemoryMap {
	return platform.MemoryMap{
		{Start: testKernelEnd, Length: 4 * 1024 * 1024, Kind: platform.RegionAvailable},
	}
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	setupScheduler(t)
	var rp platform.RecordingPanic
	h := New(testMemoryMap(), testKernelEnd, Config{Panic: rp.Panic})
	if rp.Triggered() {
		t.Fatalf("heap construction panicked: %v", rp.Messages)
	}
	return h
}

func TestAllocZeroSucceeds(t *testing.T) {
	h := newTestHeap(t)
	p := h.Alloc(0)
	if p == 0 {
		t.Fatal("expected non-null pointer for alloc(0)")
	}
}

func TestAllocSplitAndCoalesce(t *testing.T) {
	h := newTestHeap(t)

	allocBefore, _, freeBefore, _ := h.Stats()

	p1 := h.Alloc(16)
	p2 := h.Alloc(16)
	p3 := h.Alloc(16)
	p4 := h.Alloc(16)

	h.Free(p2)
	p5 := h.Alloc(16)
	if p5 != p2 {
		t.Fatalf("re-allocating after freeing P2 returned %#x, want P2's address %#x", p5, p2)
	}

	h.Free(p5)
	h.Free(p3)
	h.Free(p4)

	p6 := h.Alloc(48)
	if p6 != p2 {
		t.Fatalf("alloc(48) after freeing P2/P3/P4 returned %#x, want %#x", p6, p2)
	}

	h.Free(p1)
	h.Free(p6)

	allocAfter, allocBytesAfter, freeAfter, freeBytesAfter := h.Stats()
	if allocAfter-allocBefore != freeAfter-freeBefore {
		t.Fatalf("alloc/free call counts unbalanced: %d allocs, %d frees", allocAfter-allocBefore, freeAfter-freeBefore)
	}
	if allocBytesAfter != freeBytesAfter {
		t.Fatalf("alloc/free byte counts unbalanced: %d allocated, %d freed", allocBytesAfter, freeBytesAfter)
	}
}

func TestReallocCoalesceForward(t *testing.T) {
	h := newTestHeap(t)

	a := h.Alloc(16)
	b := h.Alloc(16)

	copy(h.Bytes(a, 16), []byte("0123456789abcdef"))

	h.Free(b)

	grown := h.Realloc(a, 32)
	if grown != a {
		t.Fatalf("realloc-absorb-forward moved the block: got %#x, want %#x (unchanged)", grown, a)
	}
	if got := string(h.Bytes(grown, 16)); got != "0123456789abcdef" {
		t.Fatalf("payload corrupted across realloc: got %q", got)
	}
}

func TestReallocNullIsAlloc(t *testing.T) {
	h := newTestHeap(t)
	p := h.Realloc(0, 32)
	if p == 0 {
		t.Fatal("expected realloc(null, n) to behave as alloc(n)")
	}
}

func TestReallocZeroIsFree(t *testing.T) {
	h := newTestHeap(t)
	p := h.Alloc(32)
	allocBefore, _, freeBefore, _ := h.Stats()

	got := h.Realloc(p, 0)
	if got != 0 {
		t.Fatalf("expected realloc(p, 0) to return null, got %#x", got)
	}

	_, _, freeAfter, _ := h.Stats()
	if freeAfter != freeBefore+1 {
		t.Fatalf("expected a free call to be recorded, freeBefore=%d freeAfter=%d", freeBefore, freeAfter)
	}
	_ = allocBefore
}

func TestReallocSameSizePreservesPayload(t *testing.T) {
	h := newTestHeap(t)
	p := h.Alloc(32)
	copy(h.Bytes(p, 32), []byte("the quick brown fox, 32 bytes!!!"))

	got := h.Realloc(p, 32)
	if got != p {
		t.Fatalf("realloc(p, same size) moved the block: got %#x, want %#x", got, p)
	}
	if string(h.Bytes(got, 32)) != "the quick brown fox, 32 bytes!!!" {
		t.Fatal("payload not preserved across same-size realloc")
	}
}

func TestFreeOfCorruptBlockIsFatal(t *testing.T) {
	h := newTestHeap(t)
	var rp platform.RecordingPanic
	h.panic = rp.Panic

	h.Free(h.base + 32) // mid-payload, reads a zeroed non-header as the header

	if !rp.Triggered() {
		t.Fatal("expected free of a corrupt address to panic fatally")
	}
}

func TestHeapExtendPastUpperBoundIsFatal(t *testing.T) {
	setupScheduler(t)
	var rp platform.RecordingPanic
	mm := platform.MemoryMap{
		{Start: testKernelEnd, Length: 16 * 1024, Kind: platform.RegionAvailable},
	}
	h := New(mm, testKernelEnd, Config{Panic: rp.Panic, InitialExtend: 16 * 1024})
	if rp.Triggered() {
		t.Fatalf("unexpected panic during construction: %v", rp.Messages)
	}

	// Exhaust the remaining 16 KiB, then force one more extend.
	for i := 0; i < 16; i++ {
		h.Alloc(1024 - headerSize)
	}
	if rp.Triggered() {
		t.Fatalf("unexpected panic before exhausting the region: %v", rp.Messages)
	}
	h.Alloc(64)
	if !rp.Triggered() {
		t.Fatal("expected extending past the upper bound to panic fatally")
	}
}
