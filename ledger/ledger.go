package ledger

import (
	"github.com/vkngwrapper/mmheap/memutils"
)

// Ledger is the circular, singly-linked list of block headers that lives inside arena memory. It
// implements first-fit search, splitting, coalescing and predecessor lookup.
//
// Every header from every arena is a member of the same list. Following Next from any block
// eventually returns to that block. Within a single arena, list order matches physical order, but
// list neighbors from different arenas have no spatial relationship.
type Ledger struct {
	anchor Block

	blockCount      int
	allocationCount int
	allocationBytes int
}

// New creates an empty ledger. Blocks are added to it with Seed and Append.
func New() *Ledger {
	return &Ledger{}
}

// Anchor returns the block that full-list scans begin from, or NoBlock if the ledger is empty
func (l *Ledger) Anchor() Block {
	return l.anchor
}

// Len returns the number of headers in the list
func (l *Ledger) Len() int {
	return l.blockCount
}

// AllocationCount returns the number of blocks currently handed out
func (l *Ledger) AllocationCount() int {
	return l.allocationCount
}

// AlignSize rounds a requested payload size up to the size of the block that will hold it
func AlignSize(size int) int {
	return memutils.AlignUp(size, Alignment)
}

// Seed makes b, a free block spanning size payload bytes, the only member of the list and its anchor.
func (l *Ledger) Seed(b Block, size int) {
	memutils.DebugAssert(l.anchor == NoBlock, "ledger was already seeded with the block at %#x", l.anchor.Address())
	memutils.DebugAssert(size > 0, "seeded block must have a positive size, got %d", size)

	construct(b, size)
	l.anchor = b
	l.blockCount = 1
}

// Append constructs a free block spanning size payload bytes at b and splices it into the list
// immediately before the anchor, so that it is the last block visited by a scan. If the ledger
// is empty, it behaves like Seed.
func (l *Ledger) Append(b Block, size int) {
	if l.anchor == NoBlock {
		l.Seed(b, size)
		return
	}

	memutils.DebugAssert(size > 0, "appended block must have a positive size, got %d", size)

	construct(b, size)
	last := l.Predecessor(l.anchor)
	b.setNext(l.anchor)
	last.setNext(b)
	l.blockCount++
}

// FindFirstFit scans the list from the anchor and returns the first free block whose capacity is
// at least requested bytes. NoBlock is returned if the scan returns to the anchor without success.
func (l *Ledger) FindFirstFit(requested int) Block {
	if l.anchor == NoBlock {
		return NoBlock
	}

	block := l.anchor
	for {
		if freeCapacity(block) >= requested {
			return block
		}

		block = block.Next()
		if block == l.anchor {
			return NoBlock
		}
	}
}

// freeCapacity is the number of bytes a block could provide to a new allocation. Blocks that are
// handed out have none, even if they carry slack past their requested size.
func freeCapacity(b Block) int {
	if !b.IsFree() {
		return 0
	}

	return b.Size()
}

// ShouldSplit returns true if carving requested bytes out of b leaves room for a whole new header
// plus at least one byte of payload
func (l *Ledger) ShouldSplit(b Block, requested int) bool {
	return b.Size() >= requested+HeaderSize+1
}

// Split shrinks b to requested payload bytes and places a new free block in the bytes that remain.
// The new block is linked between b and b's former successor, and is returned.
//
//	Before:        |---- b.Size() ----------|
//	   ----+------+------------------------+----
//	       |header|........................|
//	   ----+------+------------------------+----
//
//	After:         |- requested -|
//	   ----+------+-------------+------+---+----
//	       |header|.............|header|...|
//	   ----+------+-------------+------+---+----
func (l *Ledger) Split(b Block, requested int) Block {
	memutils.DebugAssert(l.ShouldSplit(b, requested), "block of size %d cannot be split at %d", b.Size(), requested)
	memutils.DebugAssert(requested%Alignment == 0, "split offset %d is not aligned to %d", requested, Alignment)

	originalSize := b.Size()
	originalNext := b.Next()

	b.setSize(requested)
	remainder := construct(b.physicalNext(), originalSize-requested-HeaderSize)
	remainder.setNext(originalNext)
	b.setNext(remainder)
	l.blockCount++

	return remainder
}

// CanAbsorb returns true if right is free, directly follows left in the list and begins at the
// byte immediately following left's payload. left may be in use.
func (l *Ledger) CanAbsorb(left, right Block) bool {
	if left.Next() != right || left == right {
		return false
	}

	return right.IsFree() && left.PhysicallyPrecedes(right)
}

// CanMerge returns true if left and right are both free, are list neighbors, and are physically
// adjacent in the same arena
func (l *Ledger) CanMerge(left, right Block) bool {
	return left.IsFree() && l.CanAbsorb(left, right)
}

// Merge absorbs right into left. right's header becomes part of left's payload.
func (l *Ledger) Merge(left, right Block) {
	memutils.DebugAssert(l.CanAbsorb(left, right), "block at %#x cannot absorb block at %#x", left.Address(), right.Address())

	left.setSize(left.Size() + HeaderSize + right.Size())
	left.setNext(right.Next())
	if l.anchor == right {
		l.anchor = left
	}
	l.blockCount--
}

// Predecessor returns the block whose Next is b. If b is the only block, b is returned.
func (l *Ledger) Predecessor(b Block) Block {
	current := b
	for current.Next() != b {
		current = current.Next()
	}

	return current
}

// Claim hands b out for an allocation of requested bytes
func (l *Ledger) Claim(b Block, requested int) {
	memutils.DebugAssert(b.IsFree(), "block at %#x is already in use", b.Address())
	memutils.DebugAssert(requested > 0 && requested <= b.Size(), "cannot claim %d bytes from a block of size %d", requested, b.Size())

	b.setRequestedSize(requested)
	l.allocationCount++
	l.allocationBytes += requested
}

// Resize changes the requested size recorded for a block that is in use
func (l *Ledger) Resize(b Block, requested int) {
	memutils.DebugAssert(!b.IsFree(), "block at %#x is not in use", b.Address())
	memutils.DebugAssert(requested > 0 && requested <= b.Size(), "cannot resize block of size %d to %d", b.Size(), requested)

	l.allocationBytes += requested - b.RequestedSize()
	b.setRequestedSize(requested)
}

// Release marks b free. It does not coalesce b with its neighbors.
func (l *Ledger) Release(b Block) {
	memutils.DebugAssert(!b.IsFree(), "block at %#x is not in use", b.Address())

	l.allocationCount--
	l.allocationBytes -= b.RequestedSize()
	b.setRequestedSize(0)
}
