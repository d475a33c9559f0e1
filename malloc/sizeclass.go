package malloc

// Numsizeclasses number of small-object size classes.
const Numsizeclasses = int64(17)

// Maxsmallsize biggest carved block size; a request whose block,
// header included, exceeds this goes down the dedicated large path.
const Maxsmallsize = int64(16384)

// sizeclass one entry of the small-object table. blocksize covers
// the 24-byte header, pagestoacquire keeps the carve waste small.
type sizeclass struct {
	blocksize      int64
	pagestoacquire int64
}

var sizeclasses = [Numsizeclasses]sizeclass{
	{32, 1},
	{48, 1},
	{64, 1},
	{80, 1},
	{96, 1},
	{112, 1},
	{128, 1},
	{192, 2},
	{256, 2},
	{384, 3},
	{512, 4},
	{768, 6},
	{1024, 8},
	{2048, 16},
	{4096, 32},
	{8192, 32},
	{16384, 32},
}

// suitableindex map a block size, header included, to the smallest
// class that fits it. Returns Numsizeclasses when the request
// belongs to the large path.
func suitableindex(blocksize int64) int64 {
	for index := int64(0); index < Numsizeclasses; index++ {
		if sizeclasses[index].blocksize >= blocksize {
			return index
		}
	}
	return Numsizeclasses
}

// classforblocksize exact table lookup for a carved block size, used
// when sweeping a block back into its class list.
func classforblocksize(blocksize int64) int64 {
	index := suitableindex(blocksize)
	if index == Numsizeclasses || sizeclasses[index].blocksize != blocksize {
		panicerr("no size class with block size %v", blocksize)
	}
	return index
}
