package malloc

import "sync"
import "unsafe"

import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// freespan record written in place at the first byte of every free
// span. It carries four intrusive links, two for the size-indexed
// list and two for the address-ordered list, and is overwritten the
// moment the span leaves the free pool.
type freespan struct {
	nextinsize *freespan
	previnsize *freespan
	nextinaddr *freespan
	previnaddr *freespan
	pagecount  int64
}

// centralheap owns every region mapped from the OS and arbitrates
// page spans under a single mutex. Free spans sit simultaneously in
// the size list indexed by their page count and in the address
// ordered list used for coalescing; the bitmap summarises which size
// lists are non-empty.
type centralheap struct {
	mu              sync.Mutex
	freelistsbysize [Pagesperregion + 1]freespan // sentinels
	addrlist        freespan                     // sentinel
	freebitmap      *bitmap
	meta            *metadatapool

	// configuration
	capacity int64 // byte budget for region mappings
	reserve  int64 // idle regions cached before return-to-OS

	mapped   int64 // bytes currently mapped as regions
	nregions int64 // regions mapped over the heap's lifetime
}

var central *centralheap
var centralonce sync.Once

// getcentral lazily initialize the process-wide central heap with
// the configured settings.
func getcentral() *centralheap {
	centralonce.Do(func() {
		central = newcentralheap(getsettings())
	})
	return central
}

func newcentralheap(setts s.Settings) *centralheap {
	heap := &centralheap{
		freebitmap: newbitmap(Pagesperregion + 1),
		meta:       newmetadatapool(setts.Int64("metadata.chunksize")),
		capacity:   setts.Int64("capacity"),
		reserve:    setts.Int64("region.reserve"),
	}
	for i := range heap.freelistsbysize {
		sentinel := &heap.freelistsbysize[i]
		sentinel.nextinsize, sentinel.previnsize = sentinel, sentinel
	}
	heap.addrlist.nextinaddr = &heap.addrlist
	heap.addrlist.previnaddr = &heap.addrlist
	return heap
}

//---- operations

// acquirepages hand out a span of `numpages` consecutive pages
// wrapped in a fresh descriptor; blocksize, totalblockcount and
// inusecount are left zeroed for the caller. Returns nil when the
// argument is outside [1, Pagesperregion] or memory is exhausted.
func (heap *centralheap) acquirepages(numpages int64) *pagegroup {
	if numpages <= 0 || numpages > Pagesperregion {
		return nil
	}

	// descriptor first, outside the heap mutex, so no two heap-level
	// locks are ever held together.
	group := heap.meta.allocate()
	if group == nil {
		return nil
	}

	heap.mu.Lock()
	addr := heap.fetch(numpages)
	heap.mu.Unlock()

	if addr == 0 {
		heap.meta.deallocate(group)
		return nil
	}
	group.startaddress = addr
	group.pagecount = numpages
	return group
}

// releasepages take back a span handed out by acquirepages, coalesce
// it into the free pool and destroy the descriptor. nil is a no-op.
func (heap *centralheap) releasepages(group *pagegroup) {
	if group == nil {
		return
	}
	addr, numpages := group.startaddress, group.pagecount

	heap.mu.Lock()
	heap.reclaimpages(addr, numpages)
	heap.mu.Unlock()

	heap.meta.deallocate(group)
}

//---- fetch path, heap mutex held

func (heap *centralheap) fetch(numpages int64) uintptr {
	index := heap.freebitmap.findfirstset(numpages)
	if index < 0 {
		if heap.mapped+Regionsize > heap.capacity {
			errorf("malloc: mapped %v of %v, region demand refused\n",
				humanize.IBytes(uint64(heap.mapped)),
				humanize.IBytes(uint64(heap.capacity)))
			return 0
		}
		region, err := allocatealigned(Regionsize)
		if err != nil {
			return 0
		}
		heap.mapped += Regionsize
		heap.nregions++
		debugf("malloc: mapped region %x, %v in regions\n",
			region, humanize.IBytes(uint64(heap.mapped)))
		// a region mapped on a bitmap miss is never unmapped by this
		// reclaim, the size-256 list is empty at this point.
		heap.reclaimpages(region, Pagesperregion)
		if index = heap.freebitmap.findfirstset(numpages); index < 0 {
			return 0
		}
	}

	span := heap.freelistsbysize[index].nextinsize
	heap.unlinksize(span)
	heap.unlinkaddr(span)

	if index > numpages {
		// split: the remainder re-enters through reclaim. It cannot
		// re-coalesce with `span`, whose prefix is leaving the pool.
		remainder := uintptr(unsafe.Pointer(span)) + uintptr((numpages)*Pagesize)
		heap.reclaimpages(remainder, index-numpages)
		span.pagecount = numpages
	}
	return uintptr(unsafe.Pointer(span))
}

//---- reclaim path, heap mutex held

func (heap *centralheap) reclaimpages(addr uintptr, numpages int64) {
	assertf(addr != 0 && numpages > 0, "reclaim %x+%v", addr, numpages)

	sentinel := &heap.addrlist
	succ := sentinel.nextinaddr
	for succ != sentinel && uintptr(unsafe.Pointer(succ)) < addr {
		succ = succ.nextinaddr
	}
	pred := succ.previnaddr

	var span *freespan
	if pred != sentinel && spanend(pred) == addr &&
		sameregion(uintptr(unsafe.Pointer(pred)), addr) {
		// forward merge, absorb the new span into pred.
		heap.unlinksize(pred)
		pred.pagecount += numpages
		span = pred
	} else {
		span = (*freespan)(unsafe.Pointer(addr))
		span.pagecount = numpages
		span.previnaddr, span.nextinaddr = pred, succ
		pred.nextinaddr, succ.previnaddr = span, span
	}

	if next := span.nextinaddr; next != sentinel &&
		spanend(span) == uintptr(unsafe.Pointer(next)) &&
		sameregion(uintptr(unsafe.Pointer(span)), uintptr(unsafe.Pointer(next))) {
		// backward merge, absorb the address successor.
		heap.unlinksize(next)
		heap.unlinkaddr(next)
		span.pagecount += next.pagecount
	}

	// return-to-OS hysteresis: unmap a coalesced whole region only
	// while `reserve` idle regions are already cached, keeping a
	// warm region against the next large demand.
	if span.pagecount == Pagesperregion &&
		uintptr(unsafe.Pointer(span))&uintptr(Regionsize-1) == 0 &&
		heap.cachedregions() >= heap.reserve {
		heap.unlinkaddr(span)
		deallocatealigned(uintptr(unsafe.Pointer(span)), Regionsize)
		heap.mapped -= Regionsize
		debugf("malloc: unmapped idle region %x, %v in regions\n",
			uintptr(unsafe.Pointer(span)), humanize.IBytes(uint64(heap.mapped)))
		return
	}

	heap.linksize(span)
}

//---- list plumbing, heap mutex held

func (heap *centralheap) linksize(span *freespan) {
	head := &heap.freelistsbysize[span.pagecount]
	span.nextinsize, span.previnsize = head.nextinsize, head
	head.nextinsize.previnsize = span
	head.nextinsize = span
	heap.freebitmap.set(span.pagecount)
}

func (heap *centralheap) unlinksize(span *freespan) {
	span.previnsize.nextinsize = span.nextinsize
	span.nextinsize.previnsize = span.previnsize
	head := &heap.freelistsbysize[span.pagecount]
	if head.nextinsize == head {
		heap.freebitmap.clear(span.pagecount)
	}
}

func (heap *centralheap) unlinkaddr(span *freespan) {
	span.previnaddr.nextinaddr = span.nextinaddr
	span.nextinaddr.previnaddr = span.previnaddr
}

func (heap *centralheap) cachedregions() (n int64) {
	head := &heap.freelistsbysize[Pagesperregion]
	for span := head.nextinsize; span != head; span = span.nextinsize {
		n++
	}
	return n
}

func spanend(span *freespan) uintptr {
	return uintptr(unsafe.Pointer(span)) + uintptr(span.pagecount*Pagesize)
}

func sameregion(a, b uintptr) bool {
	mask := uintptr(Regionsize - 1)
	return a&^mask == b&^mask
}

//---- statistics and maintenance

// freepages total pages sitting in the free pool.
func (heap *centralheap) freepages() (n int64) {
	heap.mu.Lock()
	defer heap.mu.Unlock()

	sentinel := &heap.addrlist
	for span := sentinel.nextinaddr; span != sentinel; span = span.nextinaddr {
		n += span.pagecount
	}
	return n
}

func (heap *centralheap) stats() map[string]interface{} {
	heap.mu.Lock()
	stats := map[string]interface{}{
		"central.capacity": heap.capacity,
		"central.mapped":   heap.mapped,
		"central.nregions": heap.nregions,
		"central.cached":   heap.cachedregions(),
	}
	heap.mu.Unlock()

	stats["central.freepages"] = heap.freepages()
	for k, v := range heap.meta.stats() {
		stats[k] = v
	}
	return stats
}

// validate the free pool invariants, panics on violation. Walks
// every list under the heap mutex, meant for tests and diagnostics.
func (heap *centralheap) validate() {
	heap.mu.Lock()
	defer heap.mu.Unlock()

	for count := int64(1); count <= Pagesperregion; count++ {
		head := &heap.freelistsbysize[count]
		nonempty := head.nextinsize != head
		if nonempty != heap.freebitmap.isset(count) {
			panicerr("bitmap out of sync for size %v", count)
		}
		for span := head.nextinsize; span != head; span = span.nextinsize {
			if span.pagecount != count {
				panicerr("span of %v pages on size list %v", span.pagecount, count)
			}
		}
	}

	sentinel := &heap.addrlist
	prevaddr := uintptr(0)
	for span := sentinel.nextinaddr; span != sentinel; span = span.nextinaddr {
		addr := uintptr(unsafe.Pointer(span))
		if addr <= prevaddr {
			panicerr("address list not strictly ascending at %x", addr)
		}
		if sameregion(addr, spanend(span)-1) == false {
			panicerr("span %x of %v pages crosses a region", addr, span.pagecount)
		}
		if prev := span.previnaddr; prev != sentinel &&
			spanend(prev) == addr && sameregion(uintptr(unsafe.Pointer(prev)), addr) {
			panicerr("uncoalesced adjacent spans at %x", addr)
		}
		prevaddr = addr
	}
}
