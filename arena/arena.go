package arena

import (
	"io"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/mmheap/ledger"
	"github.com/vkngwrapper/mmheap/memutils"
	"golang.org/x/exp/slog"
)

const (
	// DefaultPageSize is the granularity arena sizes are rounded to when no other page size is
	// configured. It is equal to 128KiB.
	DefaultPageSize int = 128 * 1024

	// ArenaHeaderSize is the number of bytes at the start of every arena that hold its prefix
	ArenaHeaderSize int = int(unsafe.Sizeof(arenaHeader{}))

	// MinPageSize is the smallest page size a Manager accepts
	MinPageSize int = 256

	// lookupShift sets the granularity of the address lookup table: each entry covers 1MiB of
	// address space, whatever the page size
	lookupShift = 20
)

var (
	// ErrMapFailed marks errors caused by the Mapper failing to provide memory
	ErrMapFailed = errors.New("arena: mapping failed")
	// ErrArenaTooSmall is returned when an arena would have no room for a block payload
	ErrArenaTooSmall = errors.New("arena: size leaves no room for a block")
)

type arenaHeader struct {
	// next is the base address of the following arena, or 0 for the last arena
	next uintptr
	// size is the total size of the arena in bytes, including the prefix
	size uintptr
}

// Arena is one contiguous region of memory obtained from a Mapper in a single request
type Arena struct {
	base   uintptr
	region []byte
}

func (a *Arena) prefix() *arenaHeader {
	return (*arenaHeader)(unsafe.Pointer(&a.region[0]))
}

// Base returns the address of the first byte of the arena
func (a *Arena) Base() uintptr {
	return a.base
}

// Size returns the total size of the arena in bytes
func (a *Arena) Size() int {
	return int(a.prefix().size)
}

// End returns the address immediately past the last byte of the arena
func (a *Arena) End() uintptr {
	return a.base + a.prefix().size
}

// NextBase returns the base address of the arena registered after this one, or 0 if this is the last
func (a *Arena) NextBase() uintptr {
	return a.prefix().next
}

// FirstHeader returns the block whose header directly follows the arena prefix
func (a *Arena) FirstHeader() ledger.Block {
	return ledger.BlockAt(unsafe.Pointer(&a.region[ArenaHeaderSize]))
}

// UsableSize returns the payload size of the single block that spans a fresh arena
func (a *Arena) UsableSize() int {
	return a.Size() - ArenaHeaderSize - ledger.HeaderSize
}

// Contains returns true if addr falls inside the arena
func (a *Arena) Contains(addr uintptr) bool {
	return addr >= a.base && addr < a.End()
}

// Span returns the part of the arena that holds blocks
func (a *Arena) Span() ledger.Span {
	return ledger.Span{
		First: a.FirstHeader(),
		End:   a.End(),
	}
}

// AlignToPage rounds n up to the next positive multiple of pageSize
func AlignToPage(n int, pageSize int) int {
	if n <= 0 {
		return pageSize
	}
	return ((n-1)/pageSize + 1) * pageSize
}

// Manager acquires arenas from a Mapper and keeps them on a singly-linked list, oldest first. The
// list is threaded through the arena prefixes themselves. Arenas are held for the lifetime of the
// Manager and the number of arenas never decreases.
type Manager struct {
	logger   *slog.Logger
	mapper   Mapper
	blocks   *ledger.Ledger
	pageSize int

	first uintptr
	count int
	bytes int

	byBase   *swiss.Map[uintptr, *Arena]
	granules *swiss.Map[uintptr, []*Arena]
}

// NewManager creates a Manager that maps memory with mapper in multiples of pageSize, and seeds
// blocks with the first arena it registers. pageSize must be a power of two no smaller than
// MinPageSize.
func NewManager(logger *slog.Logger, mapper Mapper, pageSize int, blocks *ledger.Ledger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	if mapper == nil {
		return nil, errors.New("arena: a mapper must be provided")
	}

	if blocks == nil {
		return nil, errors.New("arena: a ledger must be provided")
	}

	err := memutils.CheckPow2(pageSize, "pageSize")
	if err != nil {
		return nil, err
	}

	if pageSize < MinPageSize {
		return nil, errors.Newf("arena: pageSize %d is smaller than the minimum of %d", pageSize, MinPageSize)
	}

	return &Manager{
		logger:   logger,
		mapper:   mapper,
		blocks:   blocks,
		pageSize: pageSize,
		byBase:   swiss.NewMap[uintptr, *Arena](8),
		granules: swiss.NewMap[uintptr, []*Arena](8),
	}, nil
}

// PageSize returns the granularity that arena sizes are rounded to
func (m *Manager) PageSize() int {
	return m.pageSize
}

// AlignToPage rounds n up to the next positive multiple of this Manager's page size
func (m *Manager) AlignToPage(n int) int {
	return AlignToPage(n, m.pageSize)
}

// SizeFor returns the page-aligned arena size needed to hold a block with payloadSize bytes
func (m *Manager) SizeFor(payloadSize int) int {
	return m.AlignToPage(payloadSize + ledger.HeaderSize + ArenaHeaderSize)
}

// Acquire maps a new arena of size bytes, which should already be page-aligned. The arena is not
// added to the list until it is passed to Register. If the mapping fails, the returned error is
// marked with ErrMapFailed and nothing about the Manager changes.
func (m *Manager) Acquire(size int) (*Arena, error) {
	if size <= ArenaHeaderSize+ledger.HeaderSize {
		return nil, errors.Wrapf(ErrArenaTooSmall, "requested %d bytes, but an arena needs more than %d", size, ArenaHeaderSize+ledger.HeaderSize)
	}

	region, err := m.mapper.Map(size)
	if err != nil {
		m.logger.Warn("Manager::Acquire FAILED", slog.Int("Size", size), slog.Any("Error", err))
		return nil, errors.Mark(errors.Wrapf(err, "failed to map an arena of %d bytes", size), ErrMapFailed)
	}

	if len(region) < size {
		return nil, errors.Wrapf(ErrMapFailed, "mapper returned %d bytes when %d were requested", len(region), size)
	}

	base := uintptr(unsafe.Pointer(&region[0]))
	if base%uintptr(ledger.Alignment) != 0 {
		return nil, errors.Wrapf(ErrMapFailed, "mapper returned memory at %#x, which is not aligned to %d", base, ledger.Alignment)
	}

	a := &Arena{
		base:   base,
		region: region[:size],
	}
	prefix := a.prefix()
	prefix.next = 0
	prefix.size = uintptr(size)

	return a, nil
}

// Register appends a to the end of the arena list. If a is the first arena, the ledger is seeded
// with a single free block spanning a's usable payload and Register returns true. Otherwise the
// caller is responsible for adding a's first block to the ledger.
func (m *Manager) Register(a *Arena) bool {
	if m.first == 0 {
		m.first = a.base
	} else {
		last, _ := m.byBase.Get(m.first)
		for last.NextBase() != 0 {
			last, _ = m.byBase.Get(last.NextBase())
		}
		last.prefix().next = a.base
	}
	a.prefix().next = 0

	m.byBase.Put(a.base, a)
	for granule := a.base >> lookupShift; granule <= (a.End()-1)>>lookupShift; granule++ {
		owners, _ := m.granules.Get(granule)
		m.granules.Put(granule, append(owners, a))
	}

	m.count++
	m.bytes += a.Size()
	m.logger.Debug("  Registered Arena", slog.Uint64("Base", uint64(a.base)), slog.Int("Size", a.Size()), slog.Int("Count", m.count))

	if m.count == 1 {
		m.blocks.Seed(a.FirstHeader(), a.UsableSize())
		return true
	}

	return false
}

// Find returns the registered arena containing addr, or nil if there is none
func (m *Manager) Find(addr uintptr) *Arena {
	owners, ok := m.granules.Get(addr >> lookupShift)
	if !ok {
		return nil
	}

	for _, a := range owners {
		if a.Contains(addr) {
			return a
		}
	}

	return nil
}

// Count returns the number of registered arenas
func (m *Manager) Count() int {
	return m.count
}

// Bytes returns the total size of all registered arenas
func (m *Manager) Bytes() int {
	return m.bytes
}

// First returns the oldest registered arena, or nil if none have been registered
func (m *Manager) First() *Arena {
	if m.first == 0 {
		return nil
	}

	a, _ := m.byBase.Get(m.first)
	return a
}

// Next returns the arena registered after a, or nil if a is the last arena
func (m *Manager) Next(a *Arena) *Arena {
	if a.NextBase() == 0 {
		return nil
	}

	next, _ := m.byBase.Get(a.NextBase())
	return next
}

// VisitArenas calls visit for each registered arena, oldest first. Iteration stops at the first
// error, which is returned.
func (m *Manager) VisitArenas(visit func(a *Arena) error) error {
	for a := m.First(); a != nil; a = m.Next(a) {
		err := visit(a)
		if err != nil {
			return err
		}
	}

	return nil
}

// Spans returns the block-holding span of every registered arena, oldest first
func (m *Manager) Spans() []ledger.Span {
	spans := make([]ledger.Span, 0, m.count)
	_ = m.VisitArenas(func(a *Arena) error {
		spans = append(spans, a.Span())
		return nil
	})
	return spans
}

// AddStatistics sums the arena count and arena bytes into stats
func (m *Manager) AddStatistics(stats *memutils.Statistics) {
	stats.ArenaCount += m.count
	stats.ArenaBytes += m.bytes
}
