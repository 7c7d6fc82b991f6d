package heap

import "encoding/binary"

// Every block's 16-byte header is stored directly in the arena bytes at
// its own offset — there is no virtual memory in this kernel, so a Go
// pointer into the arena would be exactly as "physical" as a real one, but
// using unsafe.Pointer to get one buys nothing: encode/decode through
// encoding/binary keeps the arena a plain []byte and every address a plain
// offset, matching the "physical addresses only" non-goal without reaching
// for unsafe.
const (
	headerSize   = 16
	alignment    = 16
	minBlockSize = 32

	flagAllocated = 1

	magicFree      uint32 = 0xA11E0B15
	magicAllocated uint32 = 0xA11E0BA1
)

// noFree is the free-list "nil" sentinel: the maximum offset can never
// legitimately be a block's address in any heap this simulation can grow
// to (it would exceed any realistic upper bound long before then).
const noFree = ^uint32(0)

// blockHeader is the decoded form of a block's 16-byte in-arena header:
// size (including the header itself) and the allocated flag packed into
// one word, a free-list next pointer valid only while free,
// and a magic word written on construction and checked on free/realloc.
// The header's fourth word is reserved, written as zero, and otherwise
// unused — it exists only to round the header to 16 bytes.
type blockHeader struct {
	sizeAndFlag uint32
	next        uint32
	magic       uint32
}

func alignUp16(n uintptr) uintptr {
	return (n + alignment - 1) &^ (alignment - 1)
}

func (h blockHeader) size() uint32 {
	return h.sizeAndFlag &^ 0xF
}

func (h blockHeader) allocated() bool {
	return h.sizeAndFlag&flagAllocated != 0
}

func makeHeader(size uint32, allocated bool, next uint32, magic uint32) blockHeader {
	v := size &^ 0xF
	if allocated {
		v |= flagAllocated
	}
	return blockHeader{sizeAndFlag: v, next: next, magic: magic}
}

func readHeader(mem []byte, off uint32) blockHeader {
	return blockHeader{
		sizeAndFlag: binary.LittleEndian.Uint32(mem[off:]),
		next:        binary.LittleEndian.Uint32(mem[off+4:]),
		magic:       binary.LittleEndian.Uint32(mem[off+8:]),
	}
}

func writeHeader(mem []byte, off uint32, h blockHeader) {
	binary.LittleEndian.PutUint32(mem[off:], h.sizeAndFlag)
	binary.LittleEndian.PutUint32(mem[off+4:], h.next)
	binary.LittleEndian.PutUint32(mem[off+8:], h.magic)
	binary.LittleEndian.PutUint32(mem[off+12:], 0)
}
