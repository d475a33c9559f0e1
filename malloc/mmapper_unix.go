//go:build linux || darwin

package malloc

import "unsafe"

import "golang.org/x/sys/unix"

// allocatealigned maps `size` bytes of anonymous private memory
// aligned to `size`, which must be a power of two. The OS is asked
// for twice the size and the head and tail slack are trimmed, so
// exactly `size` bytes stay mapped. Stateless and concurrency safe.
func allocatealigned(size int64) (uintptr, error) {
	if ispowerof2(size) == false {
		panicerr("allocatealigned size %v is not a power of two", size)
	}

	overalloc := uintptr(size) * 2
	prot, flags := unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON
	raw, err := unix.MmapPtr(-1, 0, nil, overalloc, prot, flags)
	if err != nil {
		return 0, ErrorOutofMemory
	}

	rawaddr := uintptr(raw)
	aligned := (rawaddr + uintptr(size) - 1) &^ (uintptr(size) - 1)

	if headtrim := aligned - rawaddr; headtrim > 0 {
		unix.MunmapPtr(raw, headtrim)
	}
	end, alignedend := rawaddr+overalloc, aligned+uintptr(size)
	if tailtrim := end - alignedend; tailtrim > 0 {
		unix.MunmapPtr(unsafe.Pointer(alignedend), tailtrim)
	}
	return aligned, nil
}

// deallocatealigned unmaps a range obtained from allocatealigned.
// nil pointer or zero size is a no-op.
func deallocatealigned(addr uintptr, size int64) {
	if addr == 0 || size == 0 {
		return
	}
	unix.MunmapPtr(unsafe.Pointer(addr), uintptr(size))
}
