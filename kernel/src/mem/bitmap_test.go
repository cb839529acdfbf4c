package mem

import "testing"

func TestBitmapAllocExhaustsThenFails(t *testing.T) {
	b := NewBitmapAllocator(0, 4)

	seen := make(map[Pa_t]bool)
	for i := 0; i < 4; i++ {
		p, ok := b.Alloc()
		if !ok {
			t.Fatalf("alloc %d: expected a free frame", i)
		}
		if seen[p] {
			t.Fatalf("frame %v returned twice", p)
		}
		seen[p] = true
		if !b.Allocated(p) {
			t.Fatalf("frame %v not marked allocated after Alloc", p)
		}
	}

	if _, ok := b.Alloc(); ok {
		t.Fatal("expected allocation to fail once every frame is in use")
	}
}

func TestBitmapFreeMakesFrameReallocatable(t *testing.T) {
	b := NewBitmapAllocator(0, 2)

	p0, ok := b.Alloc()
	if !ok {
		t.Fatal("expected a free frame")
	}
	p1, ok := b.Alloc()
	if !ok {
		t.Fatal("expected a free frame")
	}
	if _, ok := b.Alloc(); ok {
		t.Fatal("expected allocator to be exhausted")
	}

	b.Free(p0)
	if b.Allocated(p0) {
		t.Fatal("freed frame still marked allocated")
	}

	p2, ok := b.Alloc()
	if !ok {
		t.Fatal("expected the freed frame to be reallocatable")
	}
	if p2 != p0 {
		t.Fatalf("expected the freed frame %v back, got %v", p0, p2)
	}
	_ = p1
}

func TestBitmapDoubleFreePanics(t *testing.T) {
	b := NewBitmapAllocator(0, 1)
	p, ok := b.Alloc()
	if !ok {
		t.Fatal("expected a free frame")
	}
	b.Free(p)

	defer func() {
		if recover() == nil {
			t.Fatal("expected double-free of a frame to panic")
		}
	}()
	b.Free(p)
}

func TestBitmapFreeCountTracksUsage(t *testing.T) {
	b := NewBitmapAllocator(0, 8)
	if n := b.FreeCount(); n != 8 {
		t.Fatalf("expected 8 free frames initially, got %d", n)
	}
	p, _ := b.Alloc()
	if n := b.FreeCount(); n != 7 {
		t.Fatalf("expected 7 free frames after one alloc, got %d", n)
	}
	b.Free(p)
	if n := b.FreeCount(); n != 8 {
		t.Fatalf("expected 8 free frames after freeing it back, got %d", n)
	}
}

func TestPhysBitmapInitPreservesBootIssuedFrames(t *testing.T) {
	mm := MemMap{{Base: 0, Length: uintptr(4 * PGSIZE), Type: RegionUsable}}
	Phys_boot_init(mm, 4*PGSIZE)

	boot := Physmem.phase.(*BootAllocator)
	p0, ok := boot.Alloc()
	if !ok {
		t.Fatal("expected boot allocator to hand out a frame")
	}

	Phys_bitmap_init()

	bm := Physmem.phase.(*BitmapAllocator)
	if !bm.Allocated(p0) {
		t.Fatalf("frame %v issued by the boot allocator must stay marked used after the bitmap swap", p0)
	}
}
