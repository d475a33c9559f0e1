package main

import "fmt"
import "time"
import "flag"
import "strings"
import "strconv"
import "sync"
import "math/rand"
import "unsafe"

import "github.com/qingfengyu2489674/gc-malloc/malloc"
import s "github.com/bnclabs/gosettings"
import hm "github.com/dustin/go-humanize"

var options struct {
	threads  int
	n        int
	sizes    []int64
	gcevery  int
	capacity int64
	log      bool
}

func argParse() {
	var sizes string

	flag.IntVar(&options.threads, "threads", 4,
		"number of concurrent allocating threads")
	flag.IntVar(&options.n, "n", 100000,
		"number of allocate/free pairs per thread")
	flag.StringVar(&sizes, "sizes", "32,64,128,256,512,1024,4096,32768",
		"comma separated allocation sizes to draw from")
	flag.IntVar(&options.gcevery, "gcevery", 256,
		"run a garbage-collection sweep every that many frees")
	flag.Int64Var(&options.capacity, "capacity", 0,
		"mapping budget in bytes, 0 for free RAM")
	flag.BoolVar(&options.log, "log", false,
		"enable allocator logging")
	flag.Parse()

	options.sizes = options.sizes[:0]
	for _, s := range strings.Split(sizes, ",") {
		s = strings.Trim(s, " \t")
		if s == "" {
			continue
		}
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil || size <= 0 {
			panic(fmt.Errorf("bad size %q", s))
		}
		options.sizes = append(options.sizes, size)
	}
	if len(options.sizes) == 0 {
		panic("no allocation sizes")
	}
}

func main() {
	argParse()

	if options.log {
		malloc.LogComponents("all")
	}
	if options.capacity > 0 {
		malloc.Configure(malloc.Defaultsettings().Mixin(
			s.Settings{"capacity": options.capacity},
		))
	}

	now := time.Now()
	var wg sync.WaitGroup
	wg.Add(options.threads)
	for n := 0; n < options.threads; n++ {
		go worker(int64(n), &wg)
	}
	wg.Wait()

	took := time.Since(now)
	ops := int64(options.threads) * int64(options.n) * 2
	fmt.Printf("Took %v for %v ops across %v threads (%v ops/sec)\n",
		took, ops, options.threads,
		hm.Comma(int64(float64(ops)/took.Seconds())))
}

func worker(seed int64, wg *sync.WaitGroup) {
	defer wg.Done()

	rnd := rand.New(rand.NewSource(seed))
	theap := malloc.NewThreadHeap()

	held := make([]unsafe.Pointer, 0, 1024)
	freed := 0
	for i := 0; i < options.n; i++ {
		size := options.sizes[rnd.Intn(len(options.sizes))]
		ptr := theap.Alloc(size)
		if ptr == nil {
			panic("out of memory")
		}
		held = append(held, ptr)

		if len(held) >= 1024 {
			victim := rnd.Intn(len(held))
			malloc.Free(held[victim])
			held[victim] = held[len(held)-1]
			held = held[:len(held)-1]
			if freed++; freed%options.gcevery == 0 {
				theap.GarbageCollect()
			}
		}
	}
	for _, ptr := range held {
		malloc.Free(ptr)
	}
	theap.GarbageCollect()

	if seed == 0 {
		printstats(theap)
	}
	theap.Release()
}

func printstats(theap *malloc.ThreadHeap) {
	capacity, heap, alloc, overhead := theap.Info()
	fmt.Printf("capacity: %10v\n", hm.IBytes(uint64(capacity)))
	fmt.Printf("heap:     %10v\n", hm.IBytes(uint64(heap)))
	fmt.Printf("alloc:    %10v\n", hm.IBytes(uint64(alloc)))
	fmt.Printf("overhead: %10v\n", hm.IBytes(uint64(overhead)))
	sizes, uzs := theap.Utilization()
	for i, size := range sizes {
		fmt.Printf("class %6v utilization %.2f%%\n", size, uzs[i])
	}
	stats := theap.Stats()
	fmt.Printf("regions mapped %v, %v in regions\n",
		stats["central.nregions"],
		hm.IBytes(uint64(stats["central.mapped"].(int64))))
}
