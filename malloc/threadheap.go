package malloc

import "unsafe"
import "sync/atomic"

import "github.com/qingfengyu2489674/gc-malloc/api"
import "github.com/qingfengyu2489674/gc-malloc/lib"

// freelist per-size-class list of blocks ready to hand out, threaded
// through the block headers' next field.
type freelist struct {
	head  *blockheader
	count int64
}

// ThreadHeap per-thread allocator front-end. Alloc, GarbageCollect
// and Release belong to the owning thread and never take a lock on
// the common path; only Free is safe from any thread. One heap per
// worker, the handle is explicit.
type ThreadHeap struct {
	central     *centralheap
	freelists   [Numsizeclasses]freelist
	managedhead *blockheader // every live block of this heap

	// accounting, owning thread only
	classtotal [Numsizeclasses]int64 // blocks carved per class
	heapbytes  int64                 // bytes held in page groups
	allocbytes int64                 // bytes handed out
	nblocks    int64                 // blocks on the managed list
	ngroups    int64                 // page groups currently held
	gcsweeps   lib.AverageInt64      // blocks reclaimed per sweep
	released   bool
}

var _ api.Mallocer = &ThreadHeap{}

// NewThreadHeap create a heap owned by the calling thread, backed by
// the process-wide central heap.
func NewThreadHeap() *ThreadHeap {
	return newthreadheap(getcentral())
}

func newthreadheap(central *centralheap) *ThreadHeap {
	return &ThreadHeap{central: central}
}

//---- operations

// Alloc a block of `size` bytes, 8-byte aligned, preceded by a valid
// block header. Returns nil when size is not positive or memory is
// exhausted.
func (theap *ThreadHeap) Alloc(size int64) unsafe.Pointer {
	if theap.released {
		panicerr("Alloc on released heap")
	}
	if size <= 0 {
		return nil
	}

	var block *blockheader
	index := suitableindex(size + headersize)
	if index < Numsizeclasses {
		flist := &theap.freelists[index]
		if flist.head == nil {
			if theap.refill(index) == false {
				return nil
			}
		}
		block = flist.head
		flist.head = block.next
		flist.count--
		block.ownergroup.inusecount++
		theap.allocbytes += block.ownergroup.blocksize
	} else {
		numpages := ceil(size+headersize, Pagesize)
		group := theap.central.acquirepages(numpages)
		if group == nil {
			return nil
		}
		block = (*blockheader)(unsafe.Pointer(group.startaddress))
		block.ownergroup = group
		group.blocksize = 0 // tags the dedicated large-block group
		group.totalblockcount = 1
		group.inusecount = 1
		theap.ngroups++
		theap.heapbytes += numpages * Pagesize
		theap.allocbytes += numpages * Pagesize
	}

	// owner-only until the pointer escapes, a plain store suffices.
	block.state = blockinuse
	block.next = theap.managedhead
	theap.managedhead = block
	theap.nblocks++
	return payloadof(block)
}

// Free mark the block as freed with a single release-store. Safe to
// call from any thread; no list is touched, the memory is recycled
// by the owning heap's next GarbageCollect. nil is a no-op.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	block := headerof(ptr)
	checkinuse(block)
	atomic.StoreUintptr(&block.state, blockfreed)
}

// Free implement api.Mallocer{} interface.
func (theap *ThreadHeap) Free(ptr unsafe.Pointer) {
	Free(ptr)
}

// GarbageCollect sweep the managed list and reclaim every block
// freed since the last sweep. Small blocks go back to their class
// list; a page group left without a single live block is returned to
// the central heap, provided the class keeps at least one warm group
// worth of free blocks. Owning thread only. Returns the number of
// blocks reclaimed.
func (theap *ThreadHeap) GarbageCollect() int64 {
	if theap.released {
		panicerr("GarbageCollect on released heap")
	}

	reclaimed := int64(0)
	var prev *blockheader
	block := theap.managedhead
	for block != nil {
		next := block.next
		if atomic.LoadUintptr(&block.state) != blockfreed {
			prev, block = block, next
			continue
		}

		// unlink from the managed list.
		if prev == nil {
			theap.managedhead = next
		} else {
			prev.next = next
		}
		theap.nblocks--
		reclaimed++

		group := block.ownergroup
		if group.blocksize != 0 {
			index := classforblocksize(group.blocksize)
			flist := &theap.freelists[index]
			block.next = flist.head
			flist.head = block
			flist.count++
			group.inusecount--
			theap.allocbytes -= group.blocksize

			// count > totalblockcount keeps one warm group in the
			// class and avoids refill thrash.
			if group.inusecount == 0 && flist.count > group.totalblockcount {
				theap.releasegroup(index, group)
			}
		} else {
			theap.allocbytes -= group.pagecount * Pagesize
			theap.heapbytes -= group.pagecount * Pagesize
			theap.central.releasepages(group)
			theap.ngroups--
		}
		block = next
	}

	theap.gcsweeps.Add(reclaimed)
	return reclaimed
}

// Release implement api.Mallocer{} interface. Runs a final sweep and
// returns every fully idle page group to the central heap. Blocks
// still in use keep their groups pinned until process exit.
func (theap *ThreadHeap) Release() {
	if theap.released {
		panicerr("heap already released")
	}
	theap.GarbageCollect()
	for index := int64(0); index < Numsizeclasses; index++ {
		theap.releaseidle(index)
	}
	if theap.nblocks > 0 {
		warnf("malloc: releasing heap with %v live blocks\n", theap.nblocks)
	}
	theap.released = true
}

//---- local functions

// refill carve a fresh page group into the class's free list.
func (theap *ThreadHeap) refill(index int64) bool {
	class := sizeclasses[index]
	group := theap.central.acquirepages(class.pagestoacquire)
	if group == nil {
		return false
	}

	numblocks := (class.pagestoacquire * Pagesize) / class.blocksize
	group.blocksize = class.blocksize
	group.totalblockcount = numblocks
	group.inusecount = 0

	var head *blockheader
	for i := int64(0); i < numblocks; i++ {
		block := (*blockheader)(unsafe.Pointer(group.startaddress + uintptr(i*class.blocksize)))
		block.state = blockfreed
		block.ownergroup = group
		block.next = head
		head = block
	}
	theap.freelists[index] = freelist{head: head, count: numblocks}

	theap.ngroups++
	theap.heapbytes += class.pagestoacquire * Pagesize
	theap.classtotal[index] += numblocks
	debugf("malloc: refill class %v with %v blocks of %v bytes\n",
		index, numblocks, class.blocksize)
	return true
}

// releasegroup strip the group's blocks off the class free list and
// hand the pages back to the central heap.
func (theap *ThreadHeap) releasegroup(index int64, group *pagegroup) {
	flist := &theap.freelists[index]
	indirect := &flist.head
	removed := int64(0)
	for *indirect != nil {
		if (*indirect).ownergroup == group {
			*indirect = (*indirect).next
			removed++
		} else {
			indirect = &(*indirect).next
		}
	}
	flist.count -= removed

	theap.classtotal[index] -= group.totalblockcount
	theap.heapbytes -= group.pagecount * Pagesize
	theap.central.releasepages(group)
	theap.ngroups--
}

// releaseidle return every fully idle group of the class, used by
// the final sweep.
func (theap *ThreadHeap) releaseidle(index int64) {
	flist := &theap.freelists[index]
	for {
		var idle *pagegroup
		for block := flist.head; block != nil; block = block.next {
			if block.ownergroup.inusecount == 0 {
				idle = block.ownergroup
				break
			}
		}
		if idle == nil {
			return
		}
		theap.releasegroup(index, idle)
	}
}
