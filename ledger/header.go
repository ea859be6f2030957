package ledger

import (
	"unsafe"
)

// header is the intrusive metadata written in front of every block's payload.
//
//	---+------+----------------------------+---
//	   |header|DDD in use DDDD...slack.....|
//	---+------+-----------------+----------+---
//	          |-- asize --------|
//	          |-- size ---------------------|
type header struct {
	// next points at the following header in the circular list. A lone header points at itself.
	next unsafe.Pointer
	// size is the number of payload bytes the block spans
	size uintptr
	// asize is the number of bytes the caller asked for; 0 means the block is free
	asize uintptr
}

const (
	// HeaderSize is the number of bytes of overhead each block carries in front of its payload
	HeaderSize int = int(unsafe.Sizeof(header{}))
	// Alignment is the granularity that block payload sizes are rounded to, which keeps every
	// header that a split creates word-aligned
	Alignment int = int(unsafe.Sizeof(uintptr(0)))
)

// Block identifies a block by a pointer to its header. The zero value, NoBlock, refers to no block.
//
// All reinterpretation of raw memory as headers happens in this file. The rest of the package
// expresses search, split and merge in terms of Block values and their accessors. Every Block is
// derived from a pointer into arena memory by offsetting it, never by converting an integer
// address back into a pointer, so arenas may live in the Go heap as well as in OS mappings.
type Block struct {
	p unsafe.Pointer
}

// NoBlock is returned when a search does not find a block
var NoBlock = Block{}

// BlockAt returns the block whose header begins at p. p must point into arena memory that is at
// least HeaderSize bytes long.
func BlockAt(p unsafe.Pointer) Block {
	return Block{p: p}
}

func (b Block) hdr() *header {
	return (*header)(b.p)
}

// construct writes a free header spanning size payload bytes at b, linked to itself.
func construct(b Block, size int) Block {
	h := b.hdr()
	// The slot may hold stale payload bytes; clear it as an integer before storing a pointer
	*(*uintptr)(unsafe.Pointer(&h.next)) = 0
	h.next = b.p
	h.size = uintptr(size)
	h.asize = 0
	return b
}

// BlockFromPayload recovers the block whose payload begins at p
func BlockFromPayload(p unsafe.Pointer) Block {
	return Block{p: unsafe.Add(p, -HeaderSize)}
}

// Address returns the address of the block's header
func (b Block) Address() uintptr {
	return uintptr(b.p)
}

// Payload returns a pointer to the first payload byte
func (b Block) Payload() unsafe.Pointer {
	return unsafe.Add(b.p, HeaderSize)
}

// Bytes returns a slice over the block's entire payload
func (b Block) Bytes() []byte {
	return unsafe.Slice((*byte)(b.Payload()), b.Size())
}

// End returns the address of the byte immediately after the block's payload. For a block that is
// not the last one in its arena, this is the address of the physically following header.
func (b Block) End() uintptr {
	return b.Address() + uintptr(HeaderSize) + b.hdr().size
}

// physicalNext returns the block whose header starts at End. The caller must know that End lies
// inside the same arena.
func (b Block) physicalNext() Block {
	return Block{p: unsafe.Add(b.p, HeaderSize+b.Size())}
}

// PhysicallyPrecedes reports whether other starts at the byte immediately following b's payload.
// This says nothing about list order.
func (b Block) PhysicallyPrecedes(other Block) bool {
	return b.End() == other.Address()
}

// Size returns the number of payload bytes the block spans
func (b Block) Size() int {
	return int(b.hdr().size)
}

// RequestedSize returns the number of bytes the caller requested, or 0 when the block is free
func (b Block) RequestedSize() int {
	return int(b.hdr().asize)
}

// IsFree returns true if the block is not handed out to a caller
func (b Block) IsFree() bool {
	return b.hdr().asize == 0
}

// Next returns the block that follows b in the circular list
func (b Block) Next() Block {
	return Block{p: b.hdr().next}
}

func (b Block) setNext(next Block) {
	b.hdr().next = next.p
}

func (b Block) setSize(size int) {
	b.hdr().size = uintptr(size)
}

func (b Block) setRequestedSize(size int) {
	b.hdr().asize = uintptr(size)
}

// CopyPayload copies n bytes from the payload of src into the payload of dst
func CopyPayload(dst, src Block, n int) {
	if n <= 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst.Payload()), n), unsafe.Slice((*byte)(src.Payload()), n))
}
