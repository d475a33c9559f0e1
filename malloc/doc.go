// Package malloc supplies a tiered, thread-caching memory allocator
// with a deferred-reclamation discipline, with a limited scope:
//
//   - Memory is mapped from the OS in regions of 1MB, aligned to the
//     region size. Regions are carved into page spans by a central
//     heap shared by every thread.
//   - Each thread owns a ThreadHeap front-end that serves small
//     allocations from per-size-class free lists without taking a
//     lock. Blocks larger than the biggest size class get a dedicated
//     page span.
//   - Free is a single atomic store and is safe to call from any
//     thread. Reclamation is strictly deferred: the memory becomes
//     reusable only when the owning thread's next GarbageCollect
//     sweeps its managed list.
//   - Blocks allocated by this package are always 8-byte aligned and
//     carry a 24-byte header just before the returned pointer.
//   - A fully idle region is eventually handed back to the OS, with a
//     hysteresis that keeps a warm region cached against the next
//     demand spike.
//
// The central heap and the descriptor pool are process-wide state,
// lazily initialized on first use. Call Configure before the first
// allocation to override Defaultsettings.
package malloc
