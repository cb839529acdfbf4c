package fat16

import "bytes"
import "testing"

import "blockdev"

func newTestDisk(t *testing.T) *blockdev.RAMDisk {
	t.Helper()
	return blockdev.NewRAMDisk(512)
}

func TestFormatThenMountYieldsEmptyRootDirectory(t *testing.T) {
	dev := newTestDisk(t)

	fs, err := Format(dev)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := fs.ReadRootDir()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root directory right after format, got %d entries", len(entries))
	}

	reloaded, err := Mount(dev)
	if err != nil {
		t.Fatal(err)
	}
	entries, err = reloaded.ReadRootDir()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root directory after reload, got %d entries", len(entries))
	}
}

func TestCreateFileThenReadFileRoundTrips(t *testing.T) {
	dev := newTestDisk(t)
	fs, err := Format(dev)
	if err != nil {
		t.Fatal(err)
	}

	want := bytes.Repeat([]byte("hello fat16 world "), 200) // spans multiple clusters
	entry, serr := fs.CreateFile("HELLO.TXT", want)
	if serr != 0 {
		t.Fatal(serr)
	}
	if entry.Name8_3() != "HELLO.TXT" {
		t.Fatalf("expected name HELLO.TXT, got %q", entry.Name8_3())
	}

	entries, err := fs.ReadRootDir()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 root directory entry, got %d", len(entries))
	}

	got, err := fs.ReadFile(entries[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round-tripped file contents differ: got %d bytes, want %d", len(got), len(want))
	}
}

func TestFileDeviceServesFileContentsByBlock(t *testing.T) {
	dev := newTestDisk(t)
	fs, err := Format(dev)
	if err != nil {
		t.Fatal(err)
	}

	want := make([]byte, blockdev.BlockSize)
	for i := range want {
		want[i] = byte(i)
	}
	entry, serr := fs.CreateFile("DATA.BIN", want)
	if serr != 0 {
		t.Fatal(serr)
	}

	fd := NewFileDevice(fs, entry)
	if fd.NumBlocks() != 1 {
		t.Fatalf("expected 1 block for a file of exactly one block, got %d", fd.NumBlocks())
	}
	got := make([]byte, blockdev.BlockSize)
	if rerr := fd.ReadBlock(0, got); rerr != 0 {
		t.Fatal(rerr)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("FileDevice.ReadBlock returned different bytes than were written")
	}
}
