package malloc

import "testing"
import "unsafe"

import "github.com/qingfengyu2489674/gc-malloc/lib"

func TestAllocatealigned(t *testing.T) {
	for _, size := range []int64{Pagesize, 1 << 16, Regionsize} {
		addr, err := allocatealigned(size)
		if err != nil {
			t.Fatalf("allocatealigned(%v): %v", size, err)
		}
		if addr == 0 {
			t.Errorf("expected non-zero address for %v", size)
		} else if addr%uintptr(size) != 0 {
			t.Errorf("address %x not aligned to %v", addr, size)
		}
		// the mapping is usable end to end.
		lib.Memset(unsafe.Pointer(addr), 0xab, int(size))
		if x := *(*byte)(unsafe.Pointer(addr + uintptr(size) - 1)); x != 0xab {
			t.Errorf("expected %v, got %v", 0xab, x)
		}
		deallocatealigned(addr, size)
	}
}

func TestAllocatealignedBadsize(t *testing.T) {
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		allocatealigned(3000)
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		allocatealigned(0)
	}()
}

func TestDeallocatealignedNoop(t *testing.T) {
	deallocatealigned(0, Regionsize) // nil pointer
	addr, err := allocatealigned(Pagesize)
	if err != nil {
		t.Fatalf("allocatealigned: %v", err)
	}
	deallocatealigned(addr, 0) // zero size
	deallocatealigned(addr, Pagesize)
}

func BenchmarkAllocatealigned(b *testing.B) {
	for i := 0; i < b.N; i++ {
		addr, _ := allocatealigned(Regionsize)
		deallocatealigned(addr, Regionsize)
	}
}
