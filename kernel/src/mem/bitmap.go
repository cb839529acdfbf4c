package mem

import "sync"

// BitmapAllocator tracks one bit per physical frame (1 = in use). A
// rotating cursor keeps allocation from always rescanning the bitmap
// from frame zero once the low frames fill up; a single lock serializes
// every allocation and free since contention on the bitmap is rare once
// steady state is reached.
type BitmapAllocator struct {
	sync.Mutex
	bits    []uint64
	startn  uint32
	nframes uint32
	cursor  uint32
}

/// NewBitmapAllocator allocates a bitmap covering nframes frames starting
/// at frame number startn.
func NewBitmapAllocator(startn, nframes uint32) *BitmapAllocator {
	words := (nframes + 63) / 64
	return &BitmapAllocator{
		bits:    make([]uint64, words),
		startn:  startn,
		nframes: nframes,
	}
}

func (b *BitmapAllocator) idx(p Pa_t) uint32 {
	return _pg2pgn(p) - b.startn
}

func (b *BitmapAllocator) markUsed(p Pa_t) {
	i := b.idx(p)
	b.bits[i/64] |= 1 << (i % 64)
}

func (b *BitmapAllocator) markFree(i uint32) {
	b.bits[i/64] &^= 1 << (i % 64)
}

func (b *BitmapAllocator) testUsed(i uint32) bool {
	return b.bits[i/64]&(1<<(i%64)) != 0
}

/// Alloc returns the next free frame, starting the scan at the cursor left
/// by the previous call so successive allocations fan out across the
/// bitmap instead of clustering at frame zero.
func (b *BitmapAllocator) Alloc() (Pa_t, bool) {
	b.Lock()
	defer b.Unlock()
	for n := uint32(0); n < b.nframes; n++ {
		i := (b.cursor + n) % b.nframes
		if !b.testUsed(i) {
			b.bits[i/64] |= 1 << (i % 64)
			b.cursor = i + 1
			return Pa_t(i+b.startn) << PGSHIFT, true
		}
	}
	return 0, false
}

/// Free clears a frame's bit, making it eligible for reuse.
func (b *BitmapAllocator) Free(p Pa_t) {
	b.Lock()
	defer b.Unlock()
	i := b.idx(p)
	if !b.testUsed(i) {
		panic("double free of physical frame")
	}
	b.markFree(i)
}

/// Allocated reports whether a frame is currently marked used, exposed
/// so tests can check allocator state directly against the bitmap.
func (b *BitmapAllocator) Allocated(p Pa_t) bool {
	b.Lock()
	defer b.Unlock()
	return b.testUsed(b.idx(p))
}

/// FreeCount reports the number of frames not currently allocated.
func (b *BitmapAllocator) FreeCount() int {
	b.Lock()
	defer b.Unlock()
	n := 0
	for i := uint32(0); i < b.nframes; i++ {
		if !b.testUsed(i) {
			n++
		}
	}
	return n
}
