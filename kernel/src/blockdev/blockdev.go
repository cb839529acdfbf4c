// Package blockdev defines the narrow block storage interface the rest
// of the kernel programs against, and a RAM-backed implementation for
// tests and for the hosted simulation's boot disk. Real block device
// hardware (AHCI/NVMe) is out of scope here, so only the request/Stat
// shape of the interface survives, backed by memory instead of a disk
// controller.
package blockdev

import "fmt"
import "os"
import "sync"

import "defs"

/// BlockSize is the fixed transfer unit every BlockDevice speaks in.
const BlockSize = 512

/// BlockDevice is the interface the vm and fat16 packages mmap and read
/// files through. Implementations only need to move whole blocks.
type BlockDevice interface {
	ReadBlock(blockno int, dst []byte) defs.Err_t
	WriteBlock(blockno int, src []byte) defs.Err_t
	NumBlocks() int
}

/// RAMDisk is a BlockDevice backed by a plain byte slice, used by tests
/// and by the hosted kernel in place of a real storage controller.
type RAMDisk struct {
	mu    sync.Mutex
	bytes []byte
}

/// NewRAMDisk allocates a RAM disk of the given size in blocks.
func NewRAMDisk(nblocks int) *RAMDisk {
	return &RAMDisk{bytes: make([]byte, nblocks*BlockSize)}
}

func (r *RAMDisk) bounds(blockno int, n int) (int, int, bool) {
	off := blockno * BlockSize
	end := off + n
	return off, end, off >= 0 && end <= len(r.bytes)
}

/// ReadBlock copies one block into dst, which must be at least
/// BlockSize bytes.
func (r *RAMDisk) ReadBlock(blockno int, dst []byte) defs.Err_t {
	r.mu.Lock()
	defer r.mu.Unlock()
	off, end, ok := r.bounds(blockno, BlockSize)
	if !ok {
		return -defs.EINVAL
	}
	copy(dst, r.bytes[off:end])
	return 0
}

/// WriteBlock copies src (at least BlockSize bytes) into one block.
func (r *RAMDisk) WriteBlock(blockno int, src []byte) defs.Err_t {
	r.mu.Lock()
	defer r.mu.Unlock()
	off, end, ok := r.bounds(blockno, BlockSize)
	if !ok {
		return -defs.EINVAL
	}
	copy(r.bytes[off:end], src)
	return 0
}

/// NumBlocks reports the device's total capacity in blocks.
func (r *RAMDisk) NumBlocks() int {
	return len(r.bytes) / BlockSize
}

/// FileDisk is a BlockDevice backed by a host file, for build-time tools
/// (cmd/mkfs) that need to produce a filesystem image on disk rather
/// than in the hosted kernel's own simulated RAM.
type FileDisk struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

/// CreateFileDisk creates (or truncates) path as a FileDisk of nblocks
/// blocks, pre-sized with NumBlocks already fixed at creation.
func CreateFileDisk(path string, nblocks int) (*FileDisk, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("blockdev: creating %s: %w", path, err)
	}
	size := int64(nblocks) * BlockSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: sizing %s: %w", path, err)
	}
	return &FileDisk{f: f, size: size}, nil
}

func (d *FileDisk) bounds(blockno int) (int64, bool) {
	off := int64(blockno) * BlockSize
	return off, off >= 0 && off+BlockSize <= d.size
}

/// ReadBlock reads one block from the backing file.
func (d *FileDisk) ReadBlock(blockno int, dst []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	off, ok := d.bounds(blockno)
	if !ok {
		return -defs.EINVAL
	}
	if _, err := d.f.ReadAt(dst[:BlockSize], off); err != nil {
		return -defs.EFAULT
	}
	return 0
}

/// WriteBlock writes one block to the backing file.
func (d *FileDisk) WriteBlock(blockno int, src []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	off, ok := d.bounds(blockno)
	if !ok {
		return -defs.EINVAL
	}
	if _, err := d.f.WriteAt(src[:BlockSize], off); err != nil {
		return -defs.EFAULT
	}
	return 0
}

/// NumBlocks reports the device's total capacity in blocks.
func (d *FileDisk) NumBlocks() int {
	return int(d.size / BlockSize)
}

/// Close flushes and closes the backing file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}
