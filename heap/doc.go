// Package heap is a first-fit memory allocator built directly on anonymous OS mappings.
//
// A Heap maps memory in large page-aligned arenas and carves caller allocations out of them. Every
// block of memory, free or in use, is prefixed by a small header, and all headers are linked into
// one circular list. Allocate scans that list from its anchor for the first free block large enough,
// splitting off whatever is left over; when nothing fits, a new arena is mapped and appended to the
// list. Release marks a block free and coalesces it with its immediate neighbors if they are free
// and physically adjacent. Reallocate grows a block in place when the following block is free,
// and otherwise moves the payload to a new block.
//
// Memory acquired from the OS is never returned to it. A Heap is not safe for concurrent use
// unless it is created with HeapCreateSynchronized.
//
// The payload pointers returned by a Heap point outside of the Go heap. They must not be used to
// store pointers to Go-managed memory, since the garbage collector does not scan arena memory.
package heap
