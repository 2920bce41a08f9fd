// Command mkfs builds a bootable FAT32 disk image out of a skeleton host
// directory tree (spec.md §4.8's on-disk format, Scenario A's "mounts a
// FAT32 root" precondition). It replaces the teacher's original mkfs,
// which drove ufs.MkDisk/BootFS against a journaled filesystem this tree
// no longer has; the image layout changed, the CLI shape did not.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bdev"
	"fat"
	"fdops"
)

// copydata streams the host file at src into the already-created dst path
// within f, growing it one host-read chunk at a time.
func copydata(f *fat.FS_t, src, dst string) {
	srcFile, err := os.Open(src)
	if err != nil {
		panic(err)
	}
	defer srcFile.Close()

	fd, oerr := f.Open(dst, fdops.O_WRONLY, 0)
	if oerr != 0 {
		panic(fmt.Sprintf("open %q in image: %v", dst, oerr))
	}
	defer fd.Close()

	buf := make([]byte, 32*1024)
	for {
		n, rerr := srcFile.Read(buf)
		if n > 0 {
			if _, werr := fd.WriteBytes(buf[:n]); werr != 0 {
				panic(fmt.Sprintf("write %q in image: %v", dst, werr))
			}
		}
		if rerr == io.EOF {
			return
		}
		if rerr != nil {
			panic(rerr)
		}
	}
}

// addfiles walks skeldir on the host and replicates its tree into f,
// directories first so every file's parent already exists.
func addfiles(f *fat.FS_t, skeldir string) {
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		if rel == "" {
			return nil
		}
		rel = "/" + strings.TrimPrefix(rel, "/")

		if d.IsDir() {
			if e := f.Mkdir(rel, 0755); e != 0 {
				fmt.Fprintf(os.Stderr, "mkfs: mkdir %q: %v\n", rel, e)
			}
			return nil
		}
		if e := f.Mkfile(rel, 0644); e != 0 {
			fmt.Fprintf(os.Stderr, "mkfs: mkfile %q: %v\n", rel, e)
			return nil
		}
		copydata(f, path, rel)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: walking %q: %v\n", skeldir, err)
		os.Exit(1)
	}
}

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: mkfs <output image> <block count> <skel dir>\n")
		os.Exit(1)
	}
	image := os.Args[1]
	var blocks uint64
	if _, err := fmt.Sscanf(os.Args[2], "%d", &blocks); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: bad block count %q: %v\n", os.Args[2], err)
		os.Exit(1)
	}
	skeldir := os.Args[3]

	dev, err := bdev.Open(image, blocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: opening %q: %v\n", image, err)
		os.Exit(1)
	}

	fat.Format(dev, fat.FormatConfig{})
	f := fat.NewFS(dev)

	addfiles(f, skeldir)

	fmt.Printf("mkfs: wrote %s (%d blocks) from %s\n", image, blocks, skeldir)
}
