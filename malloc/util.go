package malloc

import "fmt"
import "errors"

// ErrorOutofMemory when OS mapping is refused or a downstream
// allocation step fails.
var ErrorOutofMemory = errors.New("malloc.outofmemory")

func ceil(divident, divisor int64) int64 {
	if divident%divisor == 0 {
		return divident / divisor
	}
	return (divident / divisor) + 1
}

func ispowerof2(n int64) bool {
	return n > 0 && (n&(n-1)) == 0
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
