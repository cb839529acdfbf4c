package blockdev

import "bytes"
import "path/filepath"
import "testing"

func TestRAMDiskRoundTripsABlock(t *testing.T) {
	d := NewRAMDisk(4)
	want := bytes.Repeat([]byte{0xAB}, BlockSize)
	if err := d.WriteBlock(1, want); err != 0 {
		t.Fatal(err)
	}
	got := make([]byte, BlockSize)
	if err := d.ReadBlock(1, got); err != 0 {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read back different bytes than were written")
	}
}

func TestRAMDiskRejectsOutOfRangeBlock(t *testing.T) {
	d := NewRAMDisk(1)
	if err := d.ReadBlock(5, make([]byte, BlockSize)); err == 0 {
		t.Fatal("expected an error reading past the end of the disk")
	}
}

func TestFileDiskRoundTripsABlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFileDisk(path, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.NumBlocks() != 8 {
		t.Fatalf("expected 8 blocks, got %d", d.NumBlocks())
	}

	want := bytes.Repeat([]byte{0xCD}, BlockSize)
	if werr := d.WriteBlock(3, want); werr != 0 {
		t.Fatal(werr)
	}
	got := make([]byte, BlockSize)
	if rerr := d.ReadBlock(3, got); rerr != 0 {
		t.Fatal(rerr)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read back different bytes than were written")
	}
}
