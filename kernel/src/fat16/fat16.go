// Package fat16 is a minimal FAT16 filesystem over a blockdev.BlockDevice.
// This tree only needs a flat root directory and whole-file read/write
// to back file-backed mmap, so there is no open-file descriptor table,
// path walking, or directory nesting; the boot-sector/FAT/directory-entry
// layouts are kept byte-for-byte standard FAT16 so a disk formatted here
// mounts under any standard implementation.
package fat16

import "encoding/binary"
import "fmt"

import "blockdev"
import "defs"

const (
	sectorSize       = blockdev.BlockSize
	fatEntrySize     = 2
	rootDirEntries   = 512
	dirEntrySize     = 32
	deletedMarker    = 0xE5
	attrDirectory    = 0x10
	attrArchive      = 0x20
	bootSectorSize   = 512 // only the first 62 bytes are meaningful; the rest is padding to a sector
	sectorsPerFatDiv = sectorSize / fatEntrySize
)

/// bootSector mirrors the standard FAT16 boot sector layout field for
/// field; fields are decoded/encoded individually rather than overlaid
/// onto a Go struct, since Go has no packed-struct attribute to match
/// the on-disk layout with.
type bootSector struct {
	JumpBoot           [3]byte
	OEMName            [8]byte
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	ReservedSectors    uint16
	FATCount           uint8
	RootDirEntries     uint16
	TotalSectors16     uint16
	MediaType          uint8
	SectorsPerFAT      uint16
	SectorsPerTrack    uint16
	HeadCount          uint16
	HiddenSectors      uint32
	TotalSectors32     uint32
	DriveNumber        uint8
	Reserved1          uint8
	BootSignature      uint8
	VolumeID           uint32
	VolumeLabel        [11]byte
	FSType             [8]byte
}

func (b *bootSector) marshal() []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:3], b.JumpBoot[:])
	copy(buf[3:11], b.OEMName[:])
	binary.LittleEndian.PutUint16(buf[11:13], b.BytesPerSector)
	buf[13] = b.SectorsPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], b.ReservedSectors)
	buf[16] = b.FATCount
	binary.LittleEndian.PutUint16(buf[17:19], b.RootDirEntries)
	binary.LittleEndian.PutUint16(buf[19:21], b.TotalSectors16)
	buf[21] = b.MediaType
	binary.LittleEndian.PutUint16(buf[22:24], b.SectorsPerFAT)
	binary.LittleEndian.PutUint16(buf[24:26], b.SectorsPerTrack)
	binary.LittleEndian.PutUint16(buf[26:28], b.HeadCount)
	binary.LittleEndian.PutUint32(buf[28:32], b.HiddenSectors)
	binary.LittleEndian.PutUint32(buf[32:36], b.TotalSectors32)
	buf[36] = b.DriveNumber
	buf[37] = b.Reserved1
	buf[38] = b.BootSignature
	binary.LittleEndian.PutUint32(buf[39:43], b.VolumeID)
	copy(buf[43:54], b.VolumeLabel[:])
	copy(buf[54:62], b.FSType[:])
	buf[510] = 0x55
	buf[511] = 0xAA
	return buf
}

func unmarshalBootSector(buf []byte) bootSector {
	var b bootSector
	copy(b.JumpBoot[:], buf[0:3])
	copy(b.OEMName[:], buf[3:11])
	b.BytesPerSector = binary.LittleEndian.Uint16(buf[11:13])
	b.SectorsPerCluster = buf[13]
	b.ReservedSectors = binary.LittleEndian.Uint16(buf[14:16])
	b.FATCount = buf[16]
	b.RootDirEntries = binary.LittleEndian.Uint16(buf[17:19])
	b.TotalSectors16 = binary.LittleEndian.Uint16(buf[19:21])
	b.MediaType = buf[21]
	b.SectorsPerFAT = binary.LittleEndian.Uint16(buf[22:24])
	b.SectorsPerTrack = binary.LittleEndian.Uint16(buf[24:26])
	b.HeadCount = binary.LittleEndian.Uint16(buf[26:28])
	b.HiddenSectors = binary.LittleEndian.Uint32(buf[28:32])
	b.TotalSectors32 = binary.LittleEndian.Uint32(buf[32:36])
	b.DriveNumber = buf[36]
	b.Reserved1 = buf[37]
	b.BootSignature = buf[38]
	b.VolumeID = binary.LittleEndian.Uint32(buf[39:43])
	copy(b.VolumeLabel[:], buf[43:54])
	copy(b.FSType[:], buf[54:62])
	return b
}

/// DirEntry is one 8.3 directory entry, mirroring dir_entry.rs's
/// DirEntry83.
type DirEntry struct {
	Name         [8]byte
	Ext          [3]byte
	Attributes   uint8
	StartCluster uint16
	FileSize     uint32
}

func (e *DirEntry) isFree() bool    { return e.Name[0] == 0x00 }
func (e *DirEntry) isDeleted() bool { return e.Name[0] == deletedMarker }

/// IsDirectory reports whether this entry names a subdirectory. This
/// tree never creates one (no directory nesting), but Attributes is
/// still decoded so a disk formatted by a real FAT16 implementation
/// reads back faithfully.
func (e *DirEntry) IsDirectory() bool { return e.Attributes&attrDirectory != 0 }

/// Name8_3 renders the entry's name as "NAME.EXT" (or just "NAME" with
/// no extension), trimming the space padding FAT pads short names with.
func (e *DirEntry) Name8_3() string {
	name := trimPad(e.Name[:])
	ext := trimPad(e.Ext[:])
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func trimPad(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return string(b[:n])
}

func (e *DirEntry) marshal(buf []byte) {
	copy(buf[0:8], e.Name[:])
	copy(buf[8:11], e.Ext[:])
	buf[11] = e.Attributes
	// buf[12:22] reserved, left zero
	// buf[22:26] time/date, left zero: this tree has no clock source
	// worth stamping files with
	binary.LittleEndian.PutUint16(buf[26:28], e.StartCluster)
	binary.LittleEndian.PutUint32(buf[28:32], e.FileSize)
}

func unmarshalDirEntry(buf []byte) DirEntry {
	var e DirEntry
	copy(e.Name[:], buf[0:8])
	copy(e.Ext[:], buf[8:11])
	e.Attributes = buf[11]
	e.StartCluster = binary.LittleEndian.Uint16(buf[26:28])
	e.FileSize = binary.LittleEndian.Uint32(buf[28:32])
	return e
}

func splitName(name string) (n [8]byte, x [3]byte) {
	for i := range n {
		n[i] = ' '
	}
	for i := range x {
		x[i] = ' '
	}
	base := name
	ext := ""
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			base = name[:i]
			ext = name[i+1:]
			break
		}
	}
	copy(n[:], base)
	copy(x[:], ext)
	return
}

/// fatEntry is one 16-bit FAT table slot.
type fatEntry uint16

func (f fatEntry) isEndOfChain() bool { return f >= 0xFFF8 }
func (f fatEntry) isFree() bool       { return f == 0 }

const chainEnd fatEntry = 0xFFFF

/// FS is a mounted FAT16 filesystem: a boot sector plus the derived
/// sector offsets of the FAT tables, the root directory and the data
/// area, matching the fields mod.rs's Fat16 caches after Fat16::new.
type FS struct {
	dev blockdev.BlockDevice

	boot          bootSector
	fatStart      int
	rootDirStart  int
	rootDirBlocks int
	dataStart     int
	clusterSize   int
}

/// Format lays down a fresh FAT16 filesystem across the whole of dev:
/// a boot sector, two copies of an empty FAT, and a zeroed root
/// directory, then mounts it. sectorsPerCluster is hard-coded to 4;
/// dev must have enough blocks for at least one data cluster or Format
/// fails.
func Format(dev blockdev.BlockDevice) (*FS, error) {
	const sectorsPerCluster = 4
	const reservedSectors = 1
	const fatCount = 2

	totalBlocks := dev.NumBlocks()
	rootDirBlocks := (rootDirEntries*dirEntrySize + sectorSize - 1) / sectorSize

	usable := totalBlocks - reservedSectors - rootDirBlocks
	if usable <= 0 {
		return nil, fmt.Errorf("fat16: device too small to format (%d blocks)", totalBlocks)
	}
	totalClusters := usable / sectorsPerCluster
	if totalClusters < 1 {
		return nil, fmt.Errorf("fat16: device too small for a single cluster")
	}
	sectorsPerFAT := (totalClusters*fatEntrySize + sectorSize - 1) / sectorSize
	if sectorsPerFAT < 1 {
		sectorsPerFAT = 1
	}
	if reservedSectors+fatCount*sectorsPerFAT+rootDirBlocks+sectorsPerCluster > totalBlocks {
		return nil, fmt.Errorf("fat16: device too small for a single cluster")
	}

	boot := bootSector{
		JumpBoot:          [3]byte{0xEB, 0x3C, 0x90},
		OEMName:           [8]byte{'U', 'T', 'T', 'A', 'O', 'S', '.', '0'},
		BytesPerSector:    sectorSize,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		FATCount:          fatCount,
		RootDirEntries:    rootDirEntries,
		MediaType:         0xF8,
		SectorsPerFAT:     uint16(sectorsPerFAT),
		SectorsPerTrack:   63,
		HeadCount:         255,
		DriveNumber:       0x80,
		BootSignature:     0x29,
		VolumeID:          0x12345678,
		VolumeLabel:       [11]byte{'N', 'O', ' ', 'N', 'A', 'M', 'E', ' ', ' ', ' ', ' '},
		FSType:            [8]byte{'F', 'A', 'T', '1', '6', ' ', ' ', ' '},
	}
	if totalBlocks < 65536 {
		boot.TotalSectors16 = uint16(totalBlocks)
	} else {
		boot.TotalSectors32 = uint32(totalBlocks)
	}

	if err := writeBlock(dev, 0, boot.marshal()); err != nil {
		return nil, err
	}

	fatBlock := make([]byte, sectorSize)
	fatBlock[0] = boot.MediaType
	fatBlock[1] = 0xFF
	fatBlock[2] = 0xFF
	fatBlock[3] = 0xFF
	zero := make([]byte, sectorSize)

	for i := 0; i < fatCount; i++ {
		fatBase := reservedSectors + i*sectorsPerFAT
		if err := writeBlock(dev, fatBase, fatBlock); err != nil {
			return nil, err
		}
		for j := 1; j < sectorsPerFAT; j++ {
			if err := writeBlock(dev, fatBase+j, zero); err != nil {
				return nil, err
			}
		}
	}

	rootDirStart := reservedSectors + fatCount*sectorsPerFAT
	for i := 0; i < rootDirBlocks; i++ {
		if err := writeBlock(dev, rootDirStart+i, zero); err != nil {
			return nil, err
		}
	}

	return Mount(dev)
}

func writeBlock(dev blockdev.BlockDevice, blockno int, data []byte) error {
	if err := dev.WriteBlock(blockno, data); err != 0 {
		return fmt.Errorf("fat16: writing block %d: %v", blockno, err)
	}
	return nil
}

func readBlock(dev blockdev.BlockDevice, blockno int, dst []byte) error {
	if err := dev.ReadBlock(blockno, dst); err != 0 {
		return fmt.Errorf("fat16: reading block %d: %v", blockno, err)
	}
	return nil
}

/// Mount reads the boot sector off dev and derives the FAT/root-dir/data
/// offsets it describes, mirroring Fat16::new.
func Mount(dev blockdev.BlockDevice) (*FS, error) {
	buf := make([]byte, sectorSize)
	if err := readBlock(dev, 0, buf); err != nil {
		return nil, err
	}
	boot := unmarshalBootSector(buf)
	if buf[510] != 0x55 || buf[511] != 0xAA {
		return nil, fmt.Errorf("fat16: missing boot sector signature")
	}

	fatStart := int(boot.ReservedSectors)
	sectorsPerFAT := int(boot.SectorsPerFAT)
	rootDirStart := fatStart + int(boot.FATCount)*sectorsPerFAT
	rootDirBlocks := (rootDirEntries*dirEntrySize + sectorSize - 1) / sectorSize
	dataStart := rootDirStart + rootDirBlocks
	clusterSize := int(boot.SectorsPerCluster) * sectorSize

	return &FS{
		dev:           dev,
		boot:          boot,
		fatStart:      fatStart,
		rootDirStart:  rootDirStart,
		rootDirBlocks: rootDirBlocks,
		dataStart:     dataStart,
		clusterSize:   clusterSize,
	}, nil
}

func (fs *FS) clusterToBlock(cluster uint16) int {
	return fs.dataStart + (int(cluster)-2)*int(fs.boot.SectorsPerCluster)
}

func (fs *FS) readFatEntry(cluster uint16) (fatEntry, error) {
	off := int(cluster) * fatEntrySize
	block := fs.fatStart + off/sectorSize
	within := off % sectorSize
	buf := make([]byte, sectorSize)
	if err := readBlock(fs.dev, block, buf); err != nil {
		return 0, err
	}
	return fatEntry(binary.LittleEndian.Uint16(buf[within : within+2])), nil
}

func (fs *FS) writeFatEntry(cluster uint16, val fatEntry) error {
	off := int(cluster) * fatEntrySize
	block := fs.fatStart + off/sectorSize
	within := off % sectorSize
	buf := make([]byte, sectorSize)
	if err := readBlock(fs.dev, block, buf); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(buf[within:within+2], uint16(val))
	if err := writeBlock(fs.dev, block, buf); err != nil {
		return err
	}
	if fs.boot.FATCount > 1 {
		second := block + int(fs.boot.SectorsPerFAT)
		if err := writeBlock(fs.dev, second, buf); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FS) totalClusters() int {
	return int(fs.boot.SectorsPerFAT) * sectorSize / fatEntrySize
}

/// allocateCluster finds the first free FAT slot from cluster 2 onward
/// (0 and 1 are reserved, matching fat_entry.rs's layout) and marks it
/// end-of-chain.
func (fs *FS) allocateCluster() (uint16, error) {
	total := fs.totalClusters()
	for c := 2; c < total; c++ {
		e, err := fs.readFatEntry(uint16(c))
		if err != nil {
			return 0, err
		}
		if e.isFree() {
			if err := fs.writeFatEntry(uint16(c), chainEnd); err != nil {
				return 0, err
			}
			return uint16(c), nil
		}
	}
	return 0, fmt.Errorf("fat16: no free clusters")
}

/// ReadRootDir returns every live (non-free, non-deleted) entry in the
/// root directory, in on-disk order. A freshly formatted or freshly
/// reloaded filesystem returns an empty slice.
func (fs *FS) ReadRootDir() ([]DirEntry, error) {
	var out []DirEntry
	entriesPerBlock := sectorSize / dirEntrySize
	buf := make([]byte, sectorSize)
	for b := 0; b < fs.rootDirBlocks; b++ {
		if err := readBlock(fs.dev, fs.rootDirStart+b, buf); err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerBlock; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			e := unmarshalDirEntry(raw)
			if e.isFree() || e.isDeleted() {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

/// CreateFile allocates clusters for data, writes it into the data
/// area, and installs a new entry for name ("BASE.EXT" or "BASE") in the
/// first free root-directory slot. Fails with defs.ENOSPC if the root
/// directory has no free slot or the data area has no free clusters.
func (fs *FS) CreateFile(name string, data []byte) (DirEntry, defs.Err_t) {
	startCluster, err := fs.allocateChain(data)
	if err != nil {
		return DirEntry{}, -defs.ENOSPC
	}

	n, x := splitName(name)
	entry := DirEntry{
		Name:         n,
		Ext:          x,
		Attributes:   attrArchive,
		StartCluster: startCluster,
		FileSize:     uint32(len(data)),
	}
	if werr := fs.writeRootDirEntry(entry); werr != nil {
		return DirEntry{}, -defs.ENOSPC
	}
	return entry, 0
}

func (fs *FS) allocateChain(data []byte) (uint16, error) {
	if len(data) == 0 {
		return fs.allocateCluster()
	}
	var first, prev uint16
	remaining := data
	for len(remaining) > 0 || first == 0 {
		c, err := fs.allocateCluster()
		if err != nil {
			return 0, err
		}
		if first == 0 {
			first = c
		} else {
			if err := fs.writeFatEntry(prev, fatEntry(c)); err != nil {
				return 0, err
			}
		}
		block := fs.clusterToBlock(c)
		chunk := make([]byte, fs.clusterSize)
		n := copy(chunk, remaining)
		for off := 0; off < fs.clusterSize; off += sectorSize {
			if err := writeBlock(fs.dev, block+off/sectorSize, chunk[off:off+sectorSize]); err != nil {
				return 0, err
			}
		}
		remaining = remaining[n:]
		prev = c
	}
	return first, nil
}

func (fs *FS) writeRootDirEntry(entry DirEntry) error {
	entriesPerBlock := sectorSize / dirEntrySize
	buf := make([]byte, sectorSize)
	for b := 0; b < fs.rootDirBlocks; b++ {
		if err := readBlock(fs.dev, fs.rootDirStart+b, buf); err != nil {
			return err
		}
		for i := 0; i < entriesPerBlock; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			cur := unmarshalDirEntry(raw)
			if cur.isFree() || cur.isDeleted() {
				entry.marshal(raw)
				return writeBlock(fs.dev, fs.rootDirStart+b, buf)
			}
		}
	}
	return fmt.Errorf("fat16: root directory full")
}

/// ReadFile reads an entry's full contents by walking its cluster chain.
func (fs *FS) ReadFile(entry DirEntry) ([]byte, error) {
	out := make([]byte, 0, entry.FileSize)
	cluster := entry.StartCluster
	for uint32(len(out)) < entry.FileSize {
		block := fs.clusterToBlock(cluster)
		chunk := make([]byte, fs.clusterSize)
		for off := 0; off < fs.clusterSize; off += sectorSize {
			if err := readBlock(fs.dev, block+off/sectorSize, chunk[off:off+sectorSize]); err != nil {
				return nil, err
			}
		}
		need := int(entry.FileSize) - len(out)
		if need > len(chunk) {
			need = len(chunk)
		}
		out = append(out, chunk[:need]...)

		next, err := fs.readFatEntry(cluster)
		if err != nil {
			return nil, err
		}
		if next.isEndOfChain() {
			break
		}
		cluster = uint16(next)
	}
	return out, nil
}
