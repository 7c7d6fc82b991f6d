// Package heap implements AlienOS's dynamic memory allocator: a single
// growable region served by first-fit over an address-sorted, eagerly
// coalesced free list, guarded by its own recursive mutex (synch.Mutex) so
// allocation is re-entrant, with an unsynchronized variant for callers
// that must run with interrupts already off.
package heap

import (
	"github.com/Alientation/AlienOS/platform"
	"github.com/Alientation/AlienOS/synch"
)

const pageSize = 4096

func roundUpPage(n uintptr) uintptr {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// Config configures New. A zero Config takes the documented defaults.
type Config struct {
	Panic         platform.Panic
	InitialExtend uintptr // defaults to 16 KiB
}

func resolveConfig(cfg Config) Config {
	if cfg.Panic == nil {
		cfg.Panic = platform.DefaultPanic
	}
	if cfg.InitialExtend == 0 {
		cfg.InitialExtend = 16 * 1024
	}
	return cfg
}

// Heap is one allocator instance: an arena, a free list threaded through
// the arena's own block headers, and the four monotone stats counters.
type Heap struct {
	mu *synch.Mutex

	mem   []byte
	base  uintptr // simulated low bound: page-aligned above the kernel image end
	upper uintptr // hard upper bound (exclusive); extending past this is fatal

	extent uintptr // current high-water mark, relative to base

	freeHead uint32

	allocCalls uint64
	allocBytes uint64
	freeCalls  uint64
	freeBytes  uint64

	panic platform.Panic
}

// New constructs a heap from a firmware memory map and the kernel image's
// end address: the low bound is the first page boundary at or above
// kernelEnd, and the upper bound is the end of the available region
// containing it. An initial extend of cfg.InitialExtend (16 KiB by
// default) populates the free list.
func New(mm platform.MemoryMap, kernelEnd uintptr, cfg Config) *Heap {
	cfg = resolveConfig(cfg)

	region, ok := mm.RegionContaining(kernelEnd)
	if !ok {
		cfg.Panic("heap: no available memory region contains kernel end %#x", kernelEnd)
		return nil
	}

	h := &Heap{
		mu:       synch.NewMutex(),
		base:     roundUpPage(kernelEnd),
		upper:    region.Start + region.Length,
		freeHead: noFree,
		panic:    cfg.Panic,
	}
	if !h.extendLocked(cfg.InitialExtend) {
		return nil
	}
	return h
}

func (h *Heap) toAddr(off uint32) uintptr   { return h.base + uintptr(off) }
func (h *Heap) toOffset(addr uintptr) uint32 { return uint32(addr - h.base) }

// extendLocked advances the high-water mark by round_up_to_page(n) bytes,
// initializes a new free block there (coalescing it with the free list's
// current tail, if adjacent), and returns false — after reporting the
// failure fatally — if doing so would exceed the upper bound.
func (h *Heap) extendLocked(n uintptr) bool {
	n = roundUpPage(n)
	if h.base+h.extent+n > h.upper {
		h.panic("heap: extend by %d would exceed upper bound (extent=%d upper=%#x)", n, h.extent, h.upper)
		return false
	}
	off := uint32(h.extent)
	h.mem = append(h.mem, make([]byte, n)...)
	writeHeader(h.mem, off, makeHeader(uint32(n), false, noFree, magicFree))
	h.extent += n
	h.insertFree(off)
	return true
}

// insertFree links a free block into the address-sorted free list,
// coalescing with its immediate predecessor and successor if they are
// adjacent in memory. Eager coalescing keeps the list's "no two adjacent
// free blocks" invariant.
func (h *Heap) insertFree(off uint32) {
	hdr := readHeader(h.mem, off)
	size := hdr.size()

	var prevOff uint32 = noFree
	cur := h.freeHead
	for cur != noFree && cur < off {
		prevOff = cur
		cur = readHeader(h.mem, cur).next
	}

	if cur != noFree && off+size == cur {
		curHdr := readHeader(h.mem, cur)
		size += curHdr.size()
		cur = curHdr.next
	}
	writeHeader(h.mem, off, makeHeader(size, false, cur, magicFree))

	if prevOff != noFree {
		prevHdr := readHeader(h.mem, prevOff)
		if prevOff+prevHdr.size() == off {
			offHdr := readHeader(h.mem, off)
			writeHeader(h.mem, prevOff, makeHeader(prevHdr.size()+offHdr.size(), false, offHdr.next, magicFree))
			return
		}
		prevHdr.next = off
		writeHeader(h.mem, prevOff, prevHdr)
		return
	}
	h.freeHead = off
}

// removeFree unlinks a specific free block from the free list. The caller
// must know the block is currently free and in the list.
func (h *Heap) removeFree(off uint32) {
	if h.freeHead == off {
		h.freeHead = readHeader(h.mem, off).next
		return
	}
	prev := h.freeHead
	for prev != noFree {
		prevHdr := readHeader(h.mem, prev)
		if prevHdr.next == off {
			offHdr := readHeader(h.mem, off)
			prevHdr.next = offHdr.next
			writeHeader(h.mem, prev, prevHdr)
			return
		}
		prev = prevHdr.next
	}
	h.panic("heap: removeFree could not find block at offset %d in the free list", off)
}

// findFreeFit is the first-fit search over the sorted free list.
func (h *Heap) findFreeFit(total uint32) (uint32, bool) {
	off := h.freeHead
	for off != noFree {
		hdr := readHeader(h.mem, off)
		if hdr.size() >= total {
			return off, true
		}
		off = hdr.next
	}
	return 0, false
}

// splitIfNeeded keeps the leading `needed` bytes of the block at off for
// the caller and, if the remainder is at least a minimum-size block, spins
// it off as a new free block. It returns the size the caller's block ends
// up with (needed, or the full original size if the remainder was too
// small to split off). The caller writes off's final header afterward.
func (h *Heap) splitIfNeeded(off uint32, needed uint32) uint32 {
	full := readHeader(h.mem, off).size()
	remainder := full - needed
	if remainder >= minBlockSize {
		writeHeader(h.mem, off+needed, makeHeader(remainder, false, noFree, magicFree))
		h.insertFree(off + needed)
		return needed
	}
	return full
}

func totalFor(n int) uint32 {
	payload := alignUp16(uintptr(n))
	total := uintptr(headerSize) + payload
	if total < minBlockSize {
		total = minBlockSize
	}
	return uint32(total)
}

func (h *Heap) allocLocked(n int) uintptr {
	if n < 0 {
		h.panic("heap: negative alloc size %d", n)
		return 0
	}
	total := totalFor(n)

	for {
		if off, ok := h.findFreeFit(total); ok {
			h.removeFree(off)
			size := h.splitIfNeeded(off, total)
			writeHeader(h.mem, off, makeHeader(size, true, 0, magicAllocated))
			h.allocCalls++
			h.allocBytes += uint64(size)
			return h.toAddr(off + headerSize)
		}
		if !h.extendLocked(uintptr(total)) {
			return 0
		}
	}
}

// Alloc returns a 16-byte-aligned payload address whose usable span is at
// least n bytes. n == 0 is legal and returns a minimum-size block.
func (h *Heap) Alloc(n int) uintptr {
	h.mu.Acquire()
	defer h.mu.Release()
	return h.allocLocked(n)
}

// AllocUnsynchronized is Alloc without taking the heap's mutex, for callers
// that already run with interrupts disabled and must not suspend — the
// mutex's slow path can block, which those callers cannot tolerate.
func (h *Heap) AllocUnsynchronized(n int) uintptr {
	return h.allocLocked(n)
}

// Calloc is Alloc with the payload zeroed; the size computation saturates
// to a fatal failure on overflow rather than wrapping silently.
func (h *Heap) Calloc(count, size int) uintptr {
	if count < 0 || size < 0 {
		h.panic("heap: negative calloc dimensions (%d, %d)", count, size)
		return 0
	}
	total := uint64(count) * uint64(size)
	if size != 0 && total/uint64(size) != uint64(count) {
		h.panic("heap: calloc size overflow (%d * %d)", count, size)
		return 0
	}
	if total > uint64(^uint32(0)) {
		h.panic("heap: calloc size overflow (%d * %d)", count, size)
		return 0
	}

	h.mu.Acquire()
	defer h.mu.Release()

	addr := h.allocLocked(int(total))
	if addr == 0 {
		return 0
	}
	payloadOff := h.toOffset(addr)
	blockOff := payloadOff - headerSize
	payloadLen := readHeader(h.mem, blockOff).size() - headerSize
	for i := uint32(0); i < payloadLen; i++ {
		h.mem[payloadOff+i] = 0
	}
	return addr
}

func (h *Heap) freeLocked(p uintptr) {
	if p < h.base+headerSize || p >= h.base+h.extent {
		h.panic("heap: free of address %#x outside the heap", p)
		return
	}
	off := h.toOffset(p) - headerSize
	hdr := readHeader(h.mem, off)
	if hdr.magic != magicAllocated || !hdr.allocated() {
		h.panic("heap: free of corrupt or unallocated block at %#x", p)
		return
	}
	h.freeCalls++
	h.freeBytes += uint64(hdr.size())
	writeHeader(h.mem, off, makeHeader(hdr.size(), false, noFree, magicFree))
	h.insertFree(off)
}

// Free releases a block back to the allocator. A nil address is a no-op;
// a bad magic or an already-free block is a fatal invariant violation.
func (h *Heap) Free(p uintptr) {
	if p == 0 {
		return
	}
	h.mu.Acquire()
	defer h.mu.Release()
	h.freeLocked(p)
}

// FreeUnsynchronized is Free without taking the heap's mutex, for callers
// that already run with interrupts disabled and must not suspend — notably
// sched's own zombie reclamation, which calls a StackAllocator's Free while
// already holding the scheduler's critical section, and would deadlock
// against the mutex's sched-mediated blocking path.
func (h *Heap) FreeUnsynchronized(p uintptr) {
	if p == 0 {
		return
	}
	h.freeLocked(p)
}

// Realloc resizes a live allocation, preserving payload bytes up to
// min(old_payload, n). A nil p is equivalent to Alloc(n); n == 0 is
// equivalent to Free(p), returning 0. Otherwise it shrinks in place,
// absorbs a following free neighbor if that suffices, or falls back to
// allocate-copy-free.
func (h *Heap) Realloc(p uintptr, n int) uintptr {
	if p == 0 {
		return h.Alloc(n)
	}
	if n == 0 {
		h.Free(p)
		return 0
	}

	h.mu.Acquire()
	defer h.mu.Release()

	if p < h.base+headerSize || p >= h.base+h.extent {
		h.panic("heap: realloc of address %#x outside the heap", p)
		return 0
	}
	off := h.toOffset(p) - headerSize
	hdr := readHeader(h.mem, off)
	if hdr.magic != magicAllocated || !hdr.allocated() {
		h.panic("heap: realloc of corrupt or unallocated block at %#x", p)
		return 0
	}

	needed := totalFor(n)
	curSize := hdr.size()

	if curSize >= needed {
		size := h.splitIfNeeded(off, needed)
		writeHeader(h.mem, off, makeHeader(size, true, 0, magicAllocated))
		return p
	}

	followingOff := off + curSize
	if uintptr(followingOff) < h.extent {
		fHdr := readHeader(h.mem, followingOff)
		if !fHdr.allocated() && curSize+fHdr.size() >= needed {
			h.removeFree(followingOff)
			combined := curSize + fHdr.size()
			writeHeader(h.mem, off, makeHeader(combined, true, 0, magicAllocated))
			size := h.splitIfNeeded(off, needed)
			writeHeader(h.mem, off, makeHeader(size, true, 0, magicAllocated))
			return p
		}
	}

	newAddr := h.allocLocked(n)
	if newAddr == 0 {
		return 0
	}
	newOff := h.toOffset(newAddr)
	oldPayloadOff := off + headerSize
	oldPayloadLen := curSize - headerSize
	copyLen := oldPayloadLen
	if uint32(n) < copyLen {
		copyLen = uint32(n)
	}
	copy(h.mem[newOff:newOff+copyLen], h.mem[oldPayloadOff:oldPayloadOff+copyLen])
	h.freeLocked(p)
	return newAddr
}

// Bytes returns a slice view of n bytes starting at the payload address
// addr, for callers that read or write through the returned pointer
// directly rather than through a typed accessor, the way code written
// against a raw alloc() pointer does. The caller is responsible for
// keeping n within the block's usable span.
func (h *Heap) Bytes(addr uintptr, n int) []byte {
	off := h.toOffset(addr)
	return h.mem[off : off+uint32(n)]
}

// Stats reports the allocator's four monotone counters, useful for leak
// assertions in tests.
func (h *Heap) Stats() (allocCalls, allocBytes, freeCalls, freeBytes uint64) {
	h.mu.Acquire()
	defer h.mu.Release()
	return h.allocCalls, h.allocBytes, h.freeCalls, h.freeBytes
}
