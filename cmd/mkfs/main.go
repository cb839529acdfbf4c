// Command mkfs builds a fat16 disk image from a skeleton directory on the
// host, for embedding an init binary and other boot-time files into a disk
// the hosted kernel can mount at startup.
//
// It walks a skeleton directory with filepath.WalkDir and replicates it
// into a fat16.FS image, copying file contents a block at a time. fat16
// here only supports a flat root directory (see kernel/src/fat16), so
// any subdirectory under the skeleton is reported and skipped rather
// than replicated.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"blockdev"
	"fat16"
)

func usage() {
	fmt.Printf("usage: mkfs <output image> <nblocks> <skel dir>\n")
	os.Exit(1)
}

func copydata(src string, fs *fat16.FS, dst string) {
	data, err := os.ReadFile(src)
	if err != nil {
		log.Fatalf("reading %s: %v", src, err)
	}
	if _, ferr := fs.CreateFile(dst, data); ferr != 0 {
		log.Fatalf("creating %s in image: %v", dst, ferr)
	}
}

// addfiles walks skeldir on the host and copies every regular file it finds
// into fs's root directory. Subdirectories are reported and skipped.
func addfiles(fs *fat16.FS, skeldir string) {
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("failed to access %q: %v\n", path, err)
			return err
		}
		if path == skeldir {
			return nil
		}
		rel, relErr := filepath.Rel(skeldir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			fmt.Printf("skipping directory %v: fat16 has no subdirectories\n", rel)
			return filepath.SkipDir
		}
		copydata(path, fs, rel)
		return nil
	})
	if err != nil {
		log.Fatalf("walking %s: %v", skeldir, err)
	}
}

func main() {
	if len(os.Args) != 4 {
		usage()
	}
	image := os.Args[1]
	nblocks, err := strconv.Atoi(os.Args[2])
	if err != nil || nblocks <= 0 {
		log.Fatalf("invalid block count %q", os.Args[2])
	}
	skeldir := os.Args[3]

	disk, err := blockdev.CreateFileDisk(image, nblocks)
	if err != nil {
		log.Fatal(err)
	}
	defer disk.Close()

	fs, err := fat16.Format(disk)
	if err != nil {
		log.Fatalf("formatting %s: %v", image, err)
	}

	addfiles(fs, skeldir)

	fmt.Printf("wrote %s (%d blocks)\n", image, nblocks)
}
