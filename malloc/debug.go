//go:build debug

package malloc

import "unsafe"
import "sync/atomic"

// assertf precondition check, compiled only into debug builds.
func assertf(cond bool, fmsg string, args ...interface{}) {
	if cond == false {
		panicerr(fmsg, args...)
	}
}

// checkinuse debug detector for double-free and foreign pointers:
// the header of a block being freed must read IN_USE.
func checkinuse(block *blockheader) {
	if atomic.LoadUintptr(&block.state) != blockinuse {
		panicerr("free of a block not in use %x", uintptr(unsafe.Pointer(block)))
	}
}
