package heap

import (
	"fmt"
	"io"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/mmheap/arena"
	"github.com/vkngwrapper/mmheap/heap/internal/utils"
	"github.com/vkngwrapper/mmheap/ledger"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

const (
	// HeapCreateSynchronized guards every Heap method with a mutex so that the heap may be used from
	// several goroutines. Without it, the consumer must guarantee the heap is used from one goroutine
	// at a time.
	HeapCreateSynchronized CreateFlags = 1 << iota
	// HeapCreateValidateEveryCall runs the full consistency check after every Allocate, Release and
	// Reallocate, and panics if it fails. This is extremely slow and intended for diagnosing
	// memory corruption.
	HeapCreateValidateEveryCall
)

var createFlagsMapping = map[CreateFlags]string{
	HeapCreateSynchronized:      "HeapCreateSynchronized",
	HeapCreateValidateEveryCall: "HeapCreateValidateEveryCall",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for remaining := uint32(f); remaining != 0; remaining &= remaining - 1 {
		flag := CreateFlags(1 << bits.TrailingZeros32(remaining))
		name, ok := createFlagsMapping[flag]
		if !ok {
			name = fmt.Sprintf("CreateFlags(%#x)", uint32(flag))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
	// PageSize is the granularity that arena sizes are rounded up to. It must be a power of two no
	// smaller than arena.MinPageSize. If left 0, arena.DefaultPageSize is used.
	PageSize int
	// Mapper obtains memory for new arenas. If left nil, arena.DefaultMapper is used.
	Mapper arena.Mapper
}

// New creates a new, empty Heap. No memory is mapped until the first allocation.
//
// logger - Debug-level records are written for every heap operation. If nil, records are discarded.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	pageSize := options.PageSize
	if pageSize == 0 {
		pageSize = arena.DefaultPageSize
	}

	mapper := options.Mapper
	if mapper == nil {
		mapper = arena.DefaultMapper()
	}

	blocks := ledger.New()
	arenas, err := arena.NewManager(logger, mapper, pageSize, blocks)
	if err != nil {
		return nil, errors.Wrap(err, "invalid heap.CreateOptions")
	}

	heap := &Heap{
		logger:      logger,
		createFlags: options.Flags,
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&HeapCreateSynchronized != 0,
		},
		blocks: blocks,
		arenas: arenas,
	}

	logger.Debug("heap::New", slog.Int("PageSize", pageSize), slog.String("Flags", options.Flags.String()))
	return heap, nil
}
