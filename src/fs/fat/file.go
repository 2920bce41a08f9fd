package fat

import "strings"

import "bpath"
import "defs"
import "fdops"
import "stat"
import "ustr"

/// File_t is an open FAT32 file or directory descriptor: an inode plus a
/// read/write cursor (spec.md §4.8 "Operations", §4.9's fdops.Fdops_i
/// contract). Grounded on original_source's FileInner, flattened here onto
/// a single type since Go has no separate owned-vs-borrowed file handle
/// distinction to preserve.
type File_t struct {
	inode  *Inode
	cursor int
}

func newFile(inode *Inode) *File_t { return &File_t{inode: inode} }

func (f *File_t) Close() defs.Err_t  { return 0 }
func (f *File_t) Reopen() defs.Err_t { return 0 }

func (f *File_t) Tell() int { return f.cursor }

func (f *File_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) {
	var base int
	switch whence {
	case fdops.SEEK_SET:
		base = 0
	case fdops.SEEK_CUR:
		base = f.cursor
	case fdops.SEEK_END:
		base = f.inode.GetSize()
	default:
		return 0, defs.EINVAL
	}
	n := base + off
	if n < 0 {
		return 0, defs.EINVAL
	}
	f.cursor = n
	return n, 0
}

func (f *File_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if f.inode.IsDir() {
		return 0, defs.EISDIR
	}
	size := f.inode.GetSize()
	if f.cursor >= size {
		return 0, 0
	}
	buf := make([]byte, dst.Remain())
	if f.cursor+len(buf) > size {
		buf = buf[:size-f.cursor]
	}
	n := f.inode.chain.Read(f.cursor, buf)
	wn, err := dst.Uiowrite(buf[:n])
	if err != 0 {
		return 0, err
	}
	f.cursor += wn
	return wn, 0
}

func (f *File_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if f.inode.IsDir() {
		return 0, defs.EISDIR
	}
	buf := make([]byte, src.Remain())
	rn, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	wn := f.inode.chain.Write(f.cursor, buf[:rn])
	f.cursor += wn
	if f.cursor > f.inode.GetSize() {
		if serr := f.inode.SetSize(f.cursor); serr != 0 {
			return wn, serr
		}
	}
	return wn, 0
}

func (f *File_t) ReadBytes(n int) ([]uint8, defs.Err_t) {
	u := &sliceUio{b: make([]byte, n)}
	rn, err := f.Read(u)
	if err != 0 {
		return nil, err
	}
	return u.b[:rn], 0
}

func (f *File_t) WriteBytes(b []uint8) (int, defs.Err_t) {
	return f.Write(&sliceUio{b: b})
}

/// sliceUio adapts a plain byte slice to fdops.Userio_i, the same pattern
/// every package's test file uses for a scatter/gather buffer -- kept here
/// as ordinary (non-test) code since ReadBytes/WriteBytes need it outside
/// of tests too.
type sliceUio struct {
	b   []byte
	off int
}

func (u *sliceUio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.b[u.off:])
	u.off += n
	return n, 0
}
func (u *sliceUio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.b[u.off:], src)
	u.off += n
	return n, 0
}
func (u *sliceUio) Totalsz() int { return len(u.b) }
func (u *sliceUio) Remain() int  { return len(u.b) - u.off }

func (f *File_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Readable = true
	st.Writable = !f.inode.group.Entry.IsReadOnly()
	st.Name = f.inode.Name()
	if f.inode.IsDir() {
		st.Type = stat.T_DIR
	} else if f.inode.IsSym() {
		st.Type = stat.T_LINK
	} else {
		st.Type = stat.T_REGULAR
	}
	st.Wsize(uint(f.inode.GetSize()))
	return 0
}

func (f *File_t) Rename(newpath string) defs.Err_t {
	return f.rename(lastComponent(newpath))
}

func (f *File_t) rename(newName string) defs.Err_t {
	if newName == "" {
		return defs.EINVAL
	}
	return f.inode.Rename(newName)
}

func (f *File_t) Path() string { return f.inode.Name() }

func (f *File_t) Truncate(newlen uint) defs.Err_t {
	if f.inode.IsDir() {
		return defs.EISDIR
	}
	n := int(newlen)
	f.inode.chain.Truncate((n + f.inode.chain.clusterSize() - 1) / f.inode.chain.clusterSize())
	return f.inode.SetSize(n)
}

func (f *File_t) Sync() defs.Err_t {
	f.inode.fs.Sync()
	return 0
}

func (f *File_t) List() ([]fdops.Dirent_t, defs.Err_t) {
	if !f.inode.IsDir() {
		return nil, defs.ENOTDIR
	}
	var out []fdops.Dirent_t
	for _, child := range f.inode.GetInodes() {
		typ := stat.T_REGULAR
		if child.IsDir() {
			typ = stat.T_DIR
		} else if child.IsSym() {
			typ = stat.T_LINK
		}
		out = append(out, fdops.Dirent_t{Name: child.Name(), Type: typ})
	}
	return out, 0
}

func (f *File_t) Open(name string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t) {
	if !f.inode.IsDir() {
		return nil, defs.ENOTDIR
	}
	child, err := openComponent(f.inode, name, flags)
	if err != 0 {
		return nil, err
	}
	return newFile(child), 0
}

func (f *File_t) Mkdir(name string, mode uint) defs.Err_t {
	if !f.inode.IsDir() {
		return defs.ENOTDIR
	}
	_, err := f.inode.NewChild(name, AttrSubdir)
	return err
}

func (f *File_t) Mkfile(name string, mode uint) defs.Err_t {
	if !f.inode.IsDir() {
		return defs.ENOTDIR
	}
	_, err := f.inode.NewChild(name, AttrFile)
	return err
}

func (f *File_t) Remove(name string) defs.Err_t {
	if !f.inode.IsDir() {
		return defs.ENOTDIR
	}
	return f.inode.DeleteInode(name)
}

/// lastComponent returns path's final '/'-separated component, or "" if
/// path has none (the root, or an empty string).
func lastComponent(path string) string {
	pp, err := bpath.Parse(ustr.Ustr(path))
	if err != 0 || len(pp.Comps) == 0 {
		return ""
	}
	return pp.Comps[len(pp.Comps)-1].String()
}

const symlinkDepthMax = 16

/// open resolves path from dir (normally the root), following symlinks
/// unless flags carries fdops.O_NOFOLLOW and the final component is itself
/// a symlink, optionally creating a missing final component when flags
/// carries fdops.O_CREAT (spec.md §4.8 "Open"). Grounded on
/// original_source's open_d / FileInner::open.
func open(dir *Inode, path string, flags int) (*File_t, defs.Err_t) {
	return openDepth(dir, path, flags, 0)
}

func openDepth(dir *Inode, path string, flags int, depth int) (*File_t, defs.Err_t) {
	if depth > symlinkDepthMax {
		return nil, defs.ELOOP
	}
	pp, perr := bpath.Parse(ustr.Ustr(path))
	if perr != 0 {
		return nil, perr
	}
	cur := dir
	if len(pp.Comps) == 0 {
		return newFile(cur), 0
	}
	for i, comp := range pp.Comps {
		last := i == len(pp.Comps)-1
		name := comp.String()
		child, err := cur.FindInode(name)
		if err == defs.ENOENT && last && flags&fdops.O_CREAT != 0 {
			attr := byte(AttrFile)
			if flags&fdops.O_DIRECTORY != 0 {
				attr = AttrSubdir
			}
			child, err = cur.NewChild(name, attr)
		}
		if err != 0 {
			return nil, err
		}
		if child.IsSym() && !(last && flags&fdops.O_NOFOLLOW != 0) {
			target, rerr := readSymlink(child)
			if rerr != 0 {
				return nil, rerr
			}
			resolved, rerr := openDepth(rootInode(dir.fs), target, 0, depth+1)
			if rerr != 0 {
				return nil, rerr
			}
			child = resolved.inode
		}
		cur = child
	}
	if flags&fdops.O_DIRECTORY != 0 && !cur.IsDir() {
		return nil, defs.ENOTDIR
	}
	return newFile(cur), 0
}

/// openComponent resolves a single path component under dir, used by
/// File_t.Open (the fdops.Directory_i downcast) rather than the top-level
/// mount-rooted open.
func openComponent(dir *Inode, name string, flags int) (*Inode, defs.Err_t) {
	f, err := open(dir, name, flags)
	if err != 0 {
		return nil, err
	}
	return f.inode, 0
}

/// readSymlink reads a symlink inode's entire body as its target path
/// (spec.md §4.8 "Symbolic links").
func readSymlink(inode *Inode) (string, defs.Err_t) {
	buf := make([]byte, inode.GetSize())
	n := inode.chain.Read(0, buf)
	return strings.TrimRight(string(buf[:n]), "\x00"), 0
}
