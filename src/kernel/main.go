// Command kernel is the RISC-V 64 core's boot entry point (spec.md's
// Scenario A): it brings up the frame allocator and kernel heap, builds
// the kernel's own SV39 address space and checks the satp mode bit reads
// back correctly, mounts a FAT32 root plus /dev and /proc, loads and
// execs an init program, and drives the scheduler until it shuts down.
// It replaces the teacher's kernel/chentry.go, an x86 ELF-entry-patching
// build tool that has no RISC-V counterpart (spec.md's Package Layout
// names src/kernel as the boot/syscall-dispatch package, not a build
// tool).
package main

import (
	"flag"
	"fmt"
	"os"

	"bdev"
	"defs"
	"fd"
	"fdops"
	"fs"
	"mem"
	"proc"
	"sbi"
	"stat"
	"ustr"
	"vm"

	"devfs"
	"fat"
	"procfs"
)

func main() {
	npages := flag.Int("npages", 16384, "physical frames the frame allocator manages (4 KiB each)")
	heapBytes := flag.Int("heap", mem.MinHeapBytes, "kernel heap size in bytes")
	image := flag.String("image", "", "disk image path; empty means an in-memory disk")
	blocks := flag.Uint64("blocks", 65536, "block count of the disk (512 bytes each)")
	format := flag.Bool("format", true, "lay down a fresh FAT32 volume before mounting")
	initPath := flag.String("init", "/init", "path within the root filesystem of the program to exec as pid 1")
	console := flag.Bool("console", false, "wire the real terminal console instead of the hosted mock")
	flag.Parse()

	fmt.Printf("rvos: booting (sv39, %d frames, %d byte heap)\n", *npages, *heapBytes)

	mem.Physmem.Init(*npages)
	mem.KernelHeap.Init(*heapBytes)

	trampFr, ok := mem.Physmem.Alloc()
	if !ok {
		fmt.Fprintln(os.Stderr, "rvos: out of memory allocating the trampoline frame")
		os.Exit(1)
	}
	proc.TrampolinePPN = trampFr.Ppn()

	kernelMs := vm.NewKernel(trampFr.Ppn(), *npages)
	satp := kernelMs.Token()
	if satp>>60 != 8 {
		panic(fmt.Sprintf("rvos: kernel satp 0x%x does not encode SV39 mode", satp))
	}
	if rt := vm.FromToken(satp); rt.Token() != satp {
		panic("rvos: satp round-trip through FromToken does not match")
	}
	fmt.Printf("rvos: sv39 active, satp=0x%x\n", satp)

	if *console {
		c, err := sbi.NewConsole()
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvos: console init: %v\n", err)
			os.Exit(1)
		}
		sbi.Current = c
	}

	var dev bdev.Device
	if *image == "" {
		dev = bdev.NewMemory(*blocks)
	} else {
		f, err := bdev.Open(*image, *blocks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvos: opening disk image %q: %v\n", *image, err)
			os.Exit(1)
		}
		dev = f
	}
	if *format {
		fat.Format(dev, fat.FormatConfig{})
	}

	mt := fs.NewMountTable()
	rootfs := fat.NewFS(dev)
	if err := mt.Mount("/", rootfs); err != 0 {
		panic("rvos: mounting root filesystem: " + err.String())
	}
	if err := mt.Mount("/dev", devfs.New(dev)); err != 0 {
		panic("rvos: mounting /dev: " + err.String())
	}
	if err := mt.Mount("/proc", procfs.New()); err != 0 {
		panic("rvos: mounting /proc: " + err.String())
	}

	rootDir, err := rootfs.Open("/", fdops.O_DIRECTORY, 0)
	if err != 0 {
		panic("rvos: opening root directory: " + err.String())
	}
	cwd := fd.MkRootCwd(&fd.Fd_t{Fops: rootDir, Perms: fd.FD_READ})

	k := newKernelState(mt)

	elfData, rerr := readFile(mt, ustr.Ustr(*initPath))
	if rerr != 0 {
		panic(fmt.Sprintf("rvos: reading %s: %s", *initPath, rerr.String()))
	}
	initp, perr := proc.NewProcess(elfData, ustr.Ustr(*initPath), cwd)
	if perr != 0 {
		panic("rvos: loading init: " + perr.String())
	}
	proc.SetInit(initp)
	k.register(initp)

	sched := proc.NewScheduler()
	proc.ActiveScheduler = sched
	k.sched = sched
	sched.Enqueue(initp)

	fmt.Printf("rvos: init running as pid %d\n", initp.Pid)

	for sched.RunOne(k.dispatch) {
	}

	fmt.Println("rvos: run queue empty, halting")
	sbi.Current.Shutdown()
}

// readFile resolves and reads the entirety of an absolute path through
// the mount table, for loading init's ELF image before any process (and
// thus any file descriptor table) exists.
func readFile(mt *fs.MountTable_t, path ustr.Ustr) ([]byte, defs.Err_t) {
	vfsi, rel, rerr := fs.Resolve(mt, path)
	if rerr != 0 {
		return nil, rerr
	}
	fobj, oerr := vfsi.Open(rel, fdops.O_RDONLY, 0)
	if oerr != 0 {
		return nil, oerr
	}
	defer fobj.Close()

	var st stat.Stat_t
	if serr := fobj.Stat(&st); serr != 0 {
		return nil, serr
	}
	buf, rerr2 := fobj.ReadBytes(int(st.Size()))
	if rerr2 != 0 {
		return nil, rerr2
	}
	return buf, 0
}
