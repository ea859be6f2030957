// Package arena acquires large regions of memory from the OS and threads them onto a list.
//
// An Arena is one contiguous mapping obtained in a single request. Its first bytes hold a small
// prefix recording the arena's size and the address of the next arena; the remainder is handed to
// a ledger.Ledger as a single free block when the arena is registered. Arenas are never unmapped.
//
//	  /--- arena prefix
//	  |      /---- header of the first block
//	  v      v
//	  +------+------+-----------------------------+
//	  |prefix|header|.............................|
//	  +------+------+-----------------------------+
//
//	  |--------------- Arena.Size() --------------|
//
// The OS mapping primitive is abstracted behind Mapper. MMapper maps anonymous private memory on
// the current platform, GoMapper hands out zeroed memory from the Go heap, and LimitMapper caps
// the number of bytes another Mapper may hand out.
package arena
