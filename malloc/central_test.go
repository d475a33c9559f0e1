package malloc

import "testing"

import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/require"

func testcentral(capacity, reserve int64) *centralheap {
	setts := (s.Settings{}).Mixin(Defaultsettings(), s.Settings{
		"capacity":       capacity,
		"region.reserve": reserve,
	})
	return newcentralheap(setts)
}

func TestAcquireInvalid(t *testing.T) {
	heap := testcentral(4*Regionsize, 1)
	require.Nil(t, heap.acquirepages(0))
	require.Nil(t, heap.acquirepages(-1))
	require.Nil(t, heap.acquirepages(Pagesperregion+1))
}

func TestAcquireRelease(t *testing.T) {
	heap := testcentral(4*Regionsize, 1)
	group := heap.acquirepages(32)
	require.NotNil(t, group)
	require.Equal(t, int64(32), group.pagecount)
	require.NotZero(t, group.startaddress)
	require.Zero(t, group.startaddress%uintptr(Regionsize))
	require.Zero(t, group.blocksize)
	require.Zero(t, group.totalblockcount)
	require.Zero(t, group.inusecount)
	heap.validate()
	require.Equal(t, Pagesperregion-32, heap.freepages())

	heap.releasepages(group)
	heap.validate()
	require.Equal(t, Pagesperregion, heap.freepages())

	heap.releasepages(nil) // no-op
}

func TestSplitCoalesce(t *testing.T) {
	heap := testcentral(4*Regionsize, 1)

	g32 := heap.acquirepages(32)
	require.NotNil(t, g32)
	base := g32.startaddress
	heap.releasepages(g32)
	heap.validate()

	// carve three adjacent spans off the same region.
	g10 := heap.acquirepages(10)
	require.Equal(t, base, g10.startaddress)
	g12 := heap.acquirepages(12)
	require.Equal(t, base+uintptr(10*Pagesize), g12.startaddress)
	g10b := heap.acquirepages(10)
	require.Equal(t, base+uintptr(22*Pagesize), g10b.startaddress)
	heap.validate()

	// release the first two; they must coalesce into one 22-page
	// span starting at base.
	heap.releasepages(g10)
	heap.releasepages(g12)
	heap.validate()

	g22 := heap.acquirepages(22)
	require.Equal(t, base, g22.startaddress)
	require.Equal(t, int64(22), g22.pagecount)
	heap.validate()

	heap.releasepages(g22)
	heap.releasepages(g10b)
	heap.validate()
	require.Equal(t, Pagesperregion, heap.freepages())
}

func TestCoalesceWholeRegion(t *testing.T) {
	// a + b + d = Pagesperregion; release A then B; acquiring a+b
	// returns A's address while D holds the region's tail.
	heap := testcentral(4*Regionsize, 1)
	a, b, d := int64(100), int64(56), int64(100)

	gA := heap.acquirepages(a)
	gB := heap.acquirepages(b)
	gD := heap.acquirepages(d)
	base := gA.startaddress
	require.Equal(t, base+uintptr(a*Pagesize), gB.startaddress)
	require.Equal(t, base+uintptr((a+b)*Pagesize), gD.startaddress)

	heap.releasepages(gA)
	heap.releasepages(gB)
	heap.validate()

	gAB := heap.acquirepages(a + b)
	require.Equal(t, base, gAB.startaddress)

	heap.releasepages(gAB)
	heap.releasepages(gD)
	heap.validate()
}

func TestReturnToOS(t *testing.T) {
	heap := testcentral(4*Regionsize, 1)

	gA := heap.acquirepages(Pagesperregion)
	gB := heap.acquirepages(Pagesperregion)
	require.NotNil(t, gA)
	require.NotNil(t, gB)
	require.Equal(t, 2*Regionsize, heap.mapped)
	require.Equal(t, int64(2), heap.nregions)

	// first idle region is cached against the next demand.
	heap.releasepages(gA)
	require.Equal(t, 2*Regionsize, heap.mapped)

	// the second one goes back to the OS.
	heap.releasepages(gB)
	require.Equal(t, Regionsize, heap.mapped)
	heap.validate()

	// a repeating acquire/release of the only region must not churn
	// map/unmap.
	for i := 0; i < 10; i++ {
		g := heap.acquirepages(Pagesperregion)
		require.NotNil(t, g)
		heap.releasepages(g)
	}
	require.Equal(t, Regionsize, heap.mapped)
	require.Equal(t, int64(2), heap.nregions)
}

func TestCapacityBudget(t *testing.T) {
	heap := testcentral(Regionsize, 1)
	group := heap.acquirepages(Pagesperregion)
	require.NotNil(t, group)

	// budget exhausted, further region demand is refused.
	require.Nil(t, heap.acquirepages(1))

	heap.releasepages(group)
	require.NotNil(t, heap.acquirepages(1))
}

func TestCentralStats(t *testing.T) {
	heap := testcentral(4*Regionsize, 1)
	group := heap.acquirepages(8)
	stats := heap.stats()
	require.Equal(t, Regionsize, stats["central.mapped"])
	require.Equal(t, int64(1), stats["central.nregions"])
	require.Equal(t, Pagesperregion-8, stats["central.freepages"])
	require.Equal(t, int64(1), stats["metadata.descriptors"])
	heap.releasepages(group)
}
