package api

import "unsafe"

// Mallocer interface for custom memory management.
type Mallocer interface {
	// Alloc a block of `n` bytes. Returned pointer is 8-byte aligned
	// and nil when the allocator runs out of memory.
	Alloc(n int64) unsafe.Pointer

	// Free a block allocated by any Mallocer backed by the same
	// central heap. Safe to call from any thread; the memory is
	// recycled by the owning mallocer's next GarbageCollect.
	Free(ptr unsafe.Pointer)

	// GarbageCollect blocks freed since the last sweep. Shall be
	// called only by the mallocer's owning thread. Returns the number
	// of blocks reclaimed.
	GarbageCollect() int64

	// Info of memory accounting for this mallocer.
	Info() (capacity, heap, alloc, overhead int64)

	// Utilization map of block-size and its utilization.
	Utilization() ([]int, []float64)

	// Release the mallocer after a final garbage-collection sweep.
	Release()
}
