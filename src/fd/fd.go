// Package fd implements the per-process file descriptor table (spec.md
// §3's PCB "file descriptor table" field) and the current-working-directory
// tracker Cwd_t.
package fd

import "sync"

import "bpath"
import "defs"
import "fdops"
import "limits"
import "ustr"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
       // fops is an interface implemented via a "pointer receiver", thus fops
       // is a reference, not a value
       Fops  fdops.Fdops_i /// descriptor operations
       Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}

/// Cwd_t tracks the current working directory for a process.
type Cwd_t struct {
       sync.Mutex // to serialize chdirs
       Fd   *Fd_t    /// current directory fd
       Path ustr.Ustr /// canonical path
}

/// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	} else {
		full := append(cwd.Path, '/')
		return append(full, p...)
	}
}

/// Canonicalpath resolves path components relative to cwd.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	p1 := cwd.Fullpath(p)
	return bpath.Canonicalize(p1)
}

/// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(fd *Fd_t) *Cwd_t {
	c := &Cwd_t{}
	c.Fd = fd
	c.Path = ustr.MkUstrRoot()
	return c
}

/// Table_t is the per-process open-file-descriptor table. Slots are reused
/// via a free list so fd numbers stay low, matching dup()'s expectation
/// that the lowest free descriptor is returned.
type Table_t struct {
	sync.Mutex
	fds  []*Fd_t
	free []int
}

/// MkTable creates an empty descriptor table.
func MkTable() *Table_t {
	return &Table_t{}
}

/// Insert installs fdv at the lowest free slot and returns its number, or
/// EMFILE if the process is already at limits.Syslimit.Openfiles (spec.md
/// §7 "too-many-open-files").
func (t *Table_t) Insert(fdv *Fd_t) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	if len(t.free) > 0 {
		mi := 0
		for i, n := range t.free {
			if n < t.free[mi] {
				mi = i
			}
		}
		n := t.free[mi]
		t.free = append(t.free[:mi], t.free[mi+1:]...)
		t.fds[n] = fdv
		return n, 0
	}
	if len(t.fds) >= limits.Syslimit.Openfiles {
		return -1, defs.EMFILE
	}
	t.fds = append(t.fds, fdv)
	return len(t.fds) - 1, 0
}

/// InsertAt installs fdv at exactly fdnum, growing the table and failing
/// closed slots in between with a nil placeholder. Used by dup2-style fixed
/// placement.
func (t *Table_t) InsertAt(fdnum int, fdv *Fd_t) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	if fdnum < 0 || fdnum >= limits.Syslimit.Openfiles {
		return defs.EMFILE
	}
	for len(t.fds) <= fdnum {
		t.fds = append(t.fds, nil)
	}
	t.fds[fdnum] = fdv
	return 0
}

/// Get returns the descriptor at fdnum, or nil if closed/out of range.
func (t *Table_t) Get(fdnum int) *Fd_t {
	t.Lock()
	defer t.Unlock()
	if fdnum < 0 || fdnum >= len(t.fds) {
		return nil
	}
	return t.fds[fdnum]
}

/// Close removes fdnum from the table and returns the descriptor that was
/// there, or nil if it was already closed.
func (t *Table_t) Close(fdnum int) *Fd_t {
	t.Lock()
	defer t.Unlock()
	if fdnum < 0 || fdnum >= len(t.fds) || t.fds[fdnum] == nil {
		return nil
	}
	fdv := t.fds[fdnum]
	t.fds[fdnum] = nil
	t.free = append(t.free, fdnum)
	return fdv
}

/// ForkCopy duplicates the whole table for a forked child; every slot
/// shares the same Fd_t by reference, per spec.md §4.6 "child inherits the
/// file table by shared reference to each file", and each shared file is
/// Reopen'ed so it counts the child's reference.
func (t *Table_t) ForkCopy() *Table_t {
	t.Lock()
	defer t.Unlock()
	nt := &Table_t{fds: make([]*Fd_t, len(t.fds))}
	copy(nt.fds, t.fds)
	nt.free = append([]int{}, t.free...)
	for _, fdv := range nt.fds {
		if fdv != nil {
			fdv.Fops.Reopen()
		}
	}
	return nt
}

/// CloseOnExec closes every descriptor marked FD_CLOEXEC, called by exec.
func (t *Table_t) CloseOnExec() {
	t.Lock()
	defer t.Unlock()
	for i, fdv := range t.fds {
		if fdv != nil && fdv.Perms&FD_CLOEXEC != 0 {
			Close_panic(fdv)
			t.fds[i] = nil
			t.free = append(t.free, i)
		}
	}
}
