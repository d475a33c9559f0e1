package malloc

import "unsafe"

import humanize "github.com/dustin/go-humanize"

// Info implement api.Mallocer{} interface. capacity is the central
// heap's mapping budget, heap the bytes this thread holds in page
// groups, alloc the bytes handed out and not yet reclaimed, overhead
// the book-keeping cost.
func (theap *ThreadHeap) Info() (capacity, heap, alloc, overhead int64) {
	self := int64(unsafe.Sizeof(*theap))
	overhead = self + theap.nblocks*headersize + theap.ngroups*groupsize
	return theap.central.capacity, theap.heapbytes, theap.allocbytes, overhead
}

// Utilization implement api.Mallocer{} interface. Per size class,
// percentage of carved blocks currently out with the application.
func (theap *ThreadHeap) Utilization() ([]int, []float64) {
	sizes, uzs := make([]int, 0), make([]float64, 0)
	for index := int64(0); index < Numsizeclasses; index++ {
		total := theap.classtotal[index]
		if total == 0 {
			continue
		}
		inuse := total - theap.freelists[index].count
		sizes = append(sizes, int(sizeclasses[index].blocksize))
		uzs = append(uzs, (float64(inuse)/float64(total))*100)
	}
	return sizes, uzs
}

// Stats return a consolidated map of thread-heap, gc-sweep, central
// heap and descriptor pool counters.
func (theap *ThreadHeap) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"heapbytes":  theap.heapbytes,
		"allocbytes": theap.allocbytes,
		"nblocks":    theap.nblocks,
		"ngroups":    theap.ngroups,
	}
	for k, v := range theap.gcsweeps.Stats() {
		stats["gc."+k] = v
	}
	for k, v := range theap.central.stats() {
		stats[k] = v
	}
	return stats
}

// Log heap accounting in human readable form.
func (theap *ThreadHeap) Log() {
	capacity, heap, alloc, overhead := theap.Info()
	fmsg := "malloc: capacity:%v heap:%v alloc:%v overhead:%v\n"
	infof(fmsg, humanize.IBytes(uint64(capacity)), humanize.IBytes(uint64(heap)),
		humanize.IBytes(uint64(alloc)), humanize.IBytes(uint64(overhead)))

	sizes, uzs := theap.Utilization()
	for i, size := range sizes {
		infof("malloc: class %v utilization %.2f%%\n", size, uzs[i])
	}
}
