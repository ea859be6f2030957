package heap

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/mmheap/arena"
	"github.com/vkngwrapper/mmheap/heap/internal/utils"
	"github.com/vkngwrapper/mmheap/ledger"
	"github.com/vkngwrapper/mmheap/memutils"
	"golang.org/x/exp/slog"
)

var (
	// ErrOutOfMemory marks allocation failures caused by the OS refusing to map a new arena
	ErrOutOfMemory = errors.New("heap: out of memory")
	// ErrInvalidSize is returned when a negative or unrepresentable size is requested
	ErrInvalidSize = errors.New("heap: invalid allocation size")
	// ErrForeignPointer is returned when a pointer passed to Release or Reallocate does not point
	// into any arena owned by the heap
	ErrForeignPointer = errors.New("heap: pointer was not allocated by this heap")
	// ErrDoubleRelease is returned when a pointer passed to Release or Reallocate refers to a block
	// that is already free
	ErrDoubleRelease = errors.New("heap: block is already free")
)

// Heap is a first-fit allocator over arenas of anonymous memory. See the package documentation for
// an overview.
type Heap struct {
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalMutex

	blocks *ledger.Ledger
	arenas *arena.Manager
}

// Allocate returns a pointer to size bytes of memory owned by the heap. The memory is not zeroed
// unless it comes from a freshly mapped arena.
//
// Allocate returns nil and no error when size is 0. If a new arena is needed and the OS refuses to
// provide it, nil and an error marked with ErrOutOfMemory are returned and the heap is left exactly
// as it was before the call.
func (h *Heap) Allocate(size int) (unsafe.Pointer, error) {
	h.logger.Debug("Heap::Allocate", slog.Int("Size", size))

	h.mutex.Lock()
	defer h.mutex.Unlock()

	block, err := h.allocate(size)
	if err != nil || block == ledger.NoBlock {
		return nil, err
	}

	h.validateAfterCall()
	return block.Payload(), nil
}

// AllocateBytes behaves like Allocate, but returns the allocation as a byte slice of length size
func (h *Heap) AllocateBytes(size int) ([]byte, error) {
	ptr, err := h.Allocate(size)
	if err != nil || ptr == nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(ptr), size), nil
}

func (h *Heap) allocate(size int) (ledger.Block, error) {
	if size < 0 {
		return ledger.NoBlock, errors.Wrapf(ErrInvalidSize, "cannot allocate %d bytes", size)
	}

	if size == 0 {
		return ledger.NoBlock, nil
	}

	if size > h.maxAllocationSize() {
		return ledger.NoBlock, errors.Wrapf(ErrInvalidSize, "%d bytes is larger than the largest possible allocation", size)
	}

	blockSize := ledger.AlignSize(size)
	block := h.blocks.FindFirstFit(blockSize)
	if block == ledger.NoBlock {
		var err error
		block, err = h.grow(blockSize)
		if err != nil {
			return ledger.NoBlock, err
		}
	}

	if h.blocks.ShouldSplit(block, blockSize) {
		h.blocks.Split(block, blockSize)
	}

	h.blocks.Claim(block, size)
	return block, nil
}

func (h *Heap) maxAllocationSize() int {
	return math.MaxInt - 2*h.arenas.PageSize() - ledger.HeaderSize - arena.ArenaHeaderSize
}

// grow maps a new arena large enough to hold blockSize bytes and adds its single free block to the
// end of the ledger
func (h *Heap) grow(blockSize int) (ledger.Block, error) {
	a, err := h.arenas.Acquire(h.arenas.SizeFor(blockSize))
	if err != nil {
		h.logger.Debug("  Heap::grow FAILED", slog.Int("Size", blockSize))
		return ledger.NoBlock, errors.Mark(errors.Wrapf(err, "failed to allocate %d bytes", blockSize), ErrOutOfMemory)
	}

	if !h.arenas.Register(a) {
		h.blocks.Append(a.FirstHeader(), a.UsableSize())
	}

	h.logger.Debug("  Acquired Arena", slog.Int("Size", a.Size()), slog.Int("ArenaCount", h.arenas.Count()))
	return a.FirstHeader(), nil
}

// Release returns the memory at ptr, which must have been returned by Allocate, AllocateBytes or
// Reallocate on this heap, to the heap. Releasing nil does nothing.
//
// The block is coalesced with the block that follows it and with the block that precedes it, if
// either is free and physically adjacent. Release catches pointers that lie outside every arena and
// blocks that are already free, but other invalid pointers corrupt the heap.
func (h *Heap) Release(ptr unsafe.Pointer) error {
	h.logger.Debug("Heap::Release")

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if ptr == nil {
		return nil
	}

	block, err := h.blockFor(ptr)
	if err != nil {
		return err
	}

	h.release(block)
	h.validateAfterCall()
	return nil
}

func (h *Heap) release(block ledger.Block) {
	h.blocks.Release(block)

	next := block.Next()
	if h.blocks.CanMerge(block, next) {
		h.blocks.Merge(block, next)
	}

	prev := h.blocks.Predecessor(block)
	if h.blocks.CanMerge(prev, block) {
		h.blocks.Merge(prev, block)
	}
}

// blockFor recovers the block in use whose payload begins at ptr
func (h *Heap) blockFor(ptr unsafe.Pointer) (ledger.Block, error) {
	addr := uintptr(ptr)

	owner := h.arenas.Find(addr)
	if owner == nil || addr < owner.Span().Start()+uintptr(ledger.HeaderSize) || memutils.AlignDown(addr, uintptr(ledger.Alignment)) != addr {
		return ledger.NoBlock, errors.Wrapf(ErrForeignPointer, "pointer %#x", addr)
	}

	block := ledger.BlockFromPayload(ptr)
	if block.IsFree() {
		return ledger.NoBlock, errors.Wrapf(ErrDoubleRelease, "pointer %#x", addr)
	}

	return block, nil
}

// Reallocate changes the size of the allocation at ptr to size bytes and returns a pointer to the
// resized allocation. The first min(old size, size) bytes of the allocation are preserved.
//
// If ptr is nil, Reallocate behaves like Allocate. If size is 0, Reallocate behaves like Release and
// returns nil. Otherwise the allocation is resized in place when its block already has room, or
// when the block that follows it is free and adjacent and together they have room; in that case
// ptr is returned. If neither is possible, a new block is allocated, the payload is copied into it,
// and the old block is released. If that allocation fails, the old allocation is left untouched and
// the error is returned.
func (h *Heap) Reallocate(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	h.logger.Debug("Heap::Reallocate", slog.Int("Size", size))

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if ptr == nil {
		block, err := h.allocate(size)
		if err != nil || block == ledger.NoBlock {
			return nil, err
		}

		h.validateAfterCall()
		return block.Payload(), nil
	}

	if size < 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "cannot reallocate to %d bytes", size)
	}

	block, err := h.blockFor(ptr)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		h.release(block)
		h.validateAfterCall()
		return nil, nil
	}

	if size > h.maxAllocationSize() {
		return nil, errors.Wrapf(ErrInvalidSize, "%d bytes is larger than the largest possible allocation", size)
	}

	blockSize := ledger.AlignSize(size)

	if blockSize <= block.Size() {
		h.shrinkInPlace(block, blockSize)
		h.blocks.Resize(block, size)
		h.validateAfterCall()
		return ptr, nil
	}

	next := block.Next()
	if h.blocks.CanAbsorb(block, next) && blockSize <= block.Size()+ledger.HeaderSize+next.Size() {
		h.blocks.Merge(block, next)
		h.shrinkInPlace(block, blockSize)
		h.blocks.Resize(block, size)
		h.validateAfterCall()
		return ptr, nil
	}

	moved, err := h.allocate(size)
	if err != nil {
		return nil, err
	}

	ledger.CopyPayload(moved, block, memutils.Min(block.RequestedSize(), size))
	h.release(block)

	h.validateAfterCall()
	return moved.Payload(), nil
}

// shrinkInPlace splits any reusable tail off of a block in use and coalesces it with the block that
// follows, if that block is free
func (h *Heap) shrinkInPlace(block ledger.Block, blockSize int) {
	if !h.blocks.ShouldSplit(block, blockSize) {
		return
	}

	tail := h.blocks.Split(block, blockSize)
	next := tail.Next()
	if h.blocks.CanMerge(tail, next) {
		h.blocks.Merge(tail, next)
	}
}

// Bytes returns a byte slice over the allocation at ptr, with a length equal to the size that was
// requested for it. It returns nil if ptr is nil.
func (h *Heap) Bytes(ptr unsafe.Pointer) ([]byte, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if ptr == nil {
		return nil, nil
	}

	block, err := h.blockFor(ptr)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(ptr), block.RequestedSize()), nil
}

// UsableSize returns the number of payload bytes the block holding the allocation at ptr spans.
// This is at least the size that was requested for it.
func (h *Heap) UsableSize(ptr unsafe.Pointer) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	block, err := h.blockFor(ptr)
	if err != nil {
		return 0, err
	}

	return block.Size(), nil
}

// ArenaCount returns the number of arenas mapped by the heap. It never decreases.
func (h *Heap) ArenaCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.arenas.Count()
}

// BlockCount returns the number of blocks, free or in use, across all arenas
func (h *Heap) BlockCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.blocks.Len()
}

// Validate performs internal consistency checks on every block in every arena. These checks are
// expensive. When the heap is functioning correctly and only valid pointers have been passed to it,
// it should not be possible for this method to return an error.
func (h *Heap) Validate() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.validate()
}

func (h *Heap) validate() error {
	err := h.blocks.Validate(h.arenas.Spans())
	if err != nil {
		return errors.Wrap(err, "heap is corrupt")
	}

	return nil
}

type heapValidator struct {
	heap *Heap
}

func (v heapValidator) Validate() error {
	return v.heap.validate()
}

func (h *Heap) validateAfterCall() {
	if h.createFlags&HeapCreateValidateEveryCall != 0 {
		err := h.validate()
		if err != nil {
			panic(err)
		}
		return
	}

	memutils.DebugValidate(heapValidator{heap: h})
}
