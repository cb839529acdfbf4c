package fat16

import "defs"

/// FileDevice adapts one file's cluster chain to the blockdev.BlockDevice
/// interface vm.Vminfo_t.Filepage reads file-backed mmap pages through,
/// so a fat16 file can back a mapping without the vm package knowing
/// anything about clusters or FAT chains. Block numbers passed to
/// ReadBlock/WriteBlock are file-relative (block 0 is the file's first
/// blockdev.BlockSize bytes), not fat16 cluster-relative.
type FileDevice struct {
	fs    *FS
	entry DirEntry
}

/// NewFileDevice wraps entry (as returned by FS.CreateFile or found via
/// FS.ReadRootDir) so it can be registered with syscalls.RegisterMmapFile.
func NewFileDevice(fs *FS, entry DirEntry) *FileDevice {
	return &FileDevice{fs: fs, entry: entry}
}

func (d *FileDevice) blockToCluster(blockno int) (uint16, int, bool) {
	blocksPerCluster := d.fs.clusterSize / sectorSize
	clusterIdx := blockno / blocksPerCluster
	within := (blockno % blocksPerCluster) * sectorSize

	cluster := d.entry.StartCluster
	for i := 0; i < clusterIdx; i++ {
		next, err := d.fs.readFatEntry(cluster)
		if err != nil || next.isEndOfChain() {
			return 0, 0, false
		}
		cluster = uint16(next)
	}
	return cluster, within, true
}

/// ReadBlock reads one blockdev.BlockSize chunk of the file's data.
func (d *FileDevice) ReadBlock(blockno int, dst []byte) defs.Err_t {
	cluster, within, ok := d.blockToCluster(blockno)
	if !ok {
		return -defs.EINVAL
	}
	clusterBlock := d.fs.clusterToBlock(cluster) + within/sectorSize
	if err := readBlock(d.fs.dev, clusterBlock, dst); err != nil {
		return -defs.EFAULT
	}
	return 0
}

/// WriteBlock writes one blockdev.BlockSize chunk back into the file's
/// cluster chain; it does not grow the chain; writes past the
/// originally allocated length are rejected.
func (d *FileDevice) WriteBlock(blockno int, src []byte) defs.Err_t {
	cluster, within, ok := d.blockToCluster(blockno)
	if !ok {
		return -defs.EINVAL
	}
	clusterBlock := d.fs.clusterToBlock(cluster) + within/sectorSize
	if err := writeBlock(d.fs.dev, clusterBlock, src); err != nil {
		return -defs.EFAULT
	}
	return 0
}

/// NumBlocks reports how many blockdev.BlockSize chunks the file spans.
func (d *FileDevice) NumBlocks() int {
	return (int(d.entry.FileSize) + sectorSize - 1) / sectorSize
}
