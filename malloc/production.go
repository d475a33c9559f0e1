//go:build !debug

package malloc

func assertf(cond bool, fmsg string, args ...interface{}) {
}

func checkinuse(block *blockheader) {
}
