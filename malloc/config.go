package malloc

import "sync"

import s "github.com/bnclabs/gosettings"
import sigar "github.com/cloudfoundry/gosigar"

// Pagesize granularity of span accounting within a region.
const Pagesize = int64(4096)

// Pagesperregion number of pages in a single OS mapped region.
const Pagesperregion = int64(256)

// Regionsize size in bytes of a single OS mapped region, also the
// unit of mapping/unmapping and the alignment of every region.
const Regionsize = Pagesperregion * Pagesize

// Alignment every pointer returned by ThreadHeap.Alloc is aligned
// to Alignment bytes.
const Alignment = int64(8)

// Allocator configurable parameters and default settings.
//
// "capacity" (int64, default: free system RAM)
//
//	Byte budget for OS mappings. Once the central heap has this
//	many bytes mapped, further region demand fails with
//	out-of-memory.
//
// "region.reserve" (int64, default: 1)
//
//	Number of fully idle regions kept cached before a coalesced
//	region is returned to the OS. Guards against map/unmap churn
//	on a repeating alloc-free pair at region granularity.
//
// "metadata.chunksize" (int64, default: Regionsize)
//
//	Size of chunks mapped by the descriptor pool, must be a
//	power of two.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	capacity := int64(free)
	if capacity < Regionsize {
		capacity = Regionsize
	}
	return s.Settings{
		"capacity":           capacity,
		"region.reserve":     int64(1),
		"metadata.chunksize": Regionsize,
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}

var settsmu sync.Mutex
var currsetts s.Settings
var settsfrozen bool

// Configure override Defaultsettings for the process-wide central
// heap and descriptor pool. Must be called before the first
// allocation; once the central heap is initialized further calls are
// ignored with a warning.
func Configure(setts s.Settings) {
	settsmu.Lock()
	defer settsmu.Unlock()

	if settsfrozen {
		warnf("malloc: Configure() after first use, ignored\n")
		return
	}
	setts = (s.Settings{}).Mixin(Defaultsettings(), setts)
	validatesettings(setts)
	currsetts = setts
}

// consume the configured settings, freezing them on first use.
func getsettings() s.Settings {
	settsmu.Lock()
	defer settsmu.Unlock()

	if currsetts == nil {
		currsetts = Defaultsettings()
	}
	settsfrozen = true
	return currsetts
}

func validatesettings(setts s.Settings) {
	if capacity := setts.Int64("capacity"); capacity < Regionsize {
		panicerr("capacity %v less than region size %v", capacity, Regionsize)
	}
	if reserve := setts.Int64("region.reserve"); reserve < 1 {
		panicerr("region.reserve %v should be positive", reserve)
	}
	chunksize := setts.Int64("metadata.chunksize")
	if ispowerof2(chunksize) == false {
		panicerr("metadata.chunksize %v is not a power of two", chunksize)
	}
}
