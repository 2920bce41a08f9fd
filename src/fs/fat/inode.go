package fat

import "golang.org/x/text/cases"

import "defs"

var foldName = cases.Fold()

/// sameName reports whether a and b name the same file, case-insensitively
/// (spec.md §4.8 "Open ... compares names case-insensititvely"). Uses
/// golang.org/x/text/cases rather than ustr.EqFold to exercise the
/// case-folding library SPEC_FULL.md's DOMAIN STACK commits for this
/// comparison.
func sameName(a, b string) bool {
	return foldName.String(a) == foldName.String(b)
}

/// Inode is one resolved directory entry: its group (short entry plus any
/// long-name extensions), its data chain, and enough of its parent
/// directory to persist edits (spec.md §4.8 "Directory entries",
/// "Inode"). Grounded on original_source's Inode.
type Inode struct {
	fs     *FS_t
	group  DirentGroup
	chain  *Chain
	parent *Inode
}

/// rootInode returns the inode for f's root directory, which has no
/// parent and whose dirent group is synthetic (spec.md's Inode::root).
func rootInode(f *FS_t) *Inode {
	return &Inode{fs: f, group: rootGroup(), chain: rootChain(f)}
}

func (i *Inode) IsDir() bool  { return i.group.Entry.IsDir() }
func (i *Inode) IsSym() bool  { return i.group.Entry.IsSym() }
func (i *Inode) IsCur() bool  { return i.group.isCur() }
func (i *Inode) IsPar() bool  { return i.group.isPar() }
func (i *Inode) IsFake() bool { return i.IsCur() || i.IsPar() }

func (i *Inode) Name() string {
	name, err := i.group.name()
	if err != 0 {
		return i.group.Entry.ShortName()
	}
	return name
}

func (i *Inode) GetSize() int {
	if i.IsDir() {
		return len(i.chain.clusters) * i.chain.clusterSize()
	}
	return int(i.group.Entry.Size())
}

/// SetSize updates the inode's recorded size and starting cluster and
/// persists both into the parent directory's entry (spec.md §4.8's
/// Inode::set_size). The starting cluster must be re-synced here too:
/// a brand-new file's chain is empty until its first write allocates a
/// cluster, and nothing else ever writes that allocation back to the
/// on-disk entry.
func (i *Inode) SetSize(n int) defs.Err_t {
	i.group.Entry.SetStart(i.chain.firstCluster())
	i.group.Entry.SetSize(uint32(n))
	if i.parent == nil {
		return 0
	}
	return writeDirentGroup(i.parent.chain, &i.group)
}

/// GetInodes lists every live (non-deleted, non-fake) child of a
/// directory inode (spec.md §4.8's Inode::get_inodes).
func (i *Inode) GetInodes() []*Inode {
	var out []*Inode
	offset := 0
	for {
		g, next, err := readDirentGroup(i.chain, offset)
		if err != 0 {
			return out
		}
		offset = next
		if g.isCur() || g.isPar() {
			continue
		}
		out = append(out, &Inode{
			fs:     i.fs,
			group:  g,
			chain:  newChain(i.fs, i.fs.getChain(g.start())),
			parent: i,
		})
	}
}

/// FindInode looks up name among i's children, case-insensitively
/// (spec.md §4.8 "Open"). Grounded on Inode::find_inode.
func (i *Inode) FindInode(name string) (*Inode, defs.Err_t) {
	if name == "." {
		return i, 0
	}
	if name == ".." {
		if i.parent == nil {
			return i, 0
		}
		return i.parent, 0
	}
	for _, child := range i.GetInodes() {
		if sameName(child.Name(), name) {
			return child, 0
		}
	}
	return nil, defs.ENOENT
}

/// NewChild creates a new directory entry named name with attr under i,
/// allocating a fresh cluster chain: a one-cluster chain for a directory
/// (pre-populated with "." and ".."), an empty chain for a plain file
/// (spec.md §4.8 "Mkdir", "Mkfile"). Grounded on Inode::new_dir/new_file.
func (i *Inode) NewChild(name string, attr byte) (*Inode, defs.Err_t) {
	if !i.IsDir() {
		return nil, defs.ENOTDIR
	}
	if _, err := i.FindInode(name); err == 0 {
		return nil, defs.EEXIST
	}

	var start uint32
	var clusters []uint32
	if attr&AttrSubdir != 0 {
		start = i.fs.allocCluster()
		clusters = []uint32{start}
	}

	group := newDirentGroup(name, start, attr)
	if err := writeDirentGroup(i.chain, &group); err != 0 {
		return nil, err
	}

	child := &Inode{fs: i.fs, group: group, chain: newChain(i.fs, clusters), parent: i}

	if attr&AttrSubdir != 0 {
		cur := newDirentGroup(".", start, AttrSubdir)
		par := newDirentGroup("..", i.chain.firstCluster(), AttrSubdir)
		if err := writeDirentGroup(child.chain, &cur); err != 0 {
			return nil, err
		}
		if err := writeDirentGroup(child.chain, &par); err != 0 {
			return nil, err
		}
	}
	return child, 0
}

/// DeleteInode removes name from i's directory entries and frees its data
/// chain (spec.md §4.8 "Remove"). Grounded on Inode::delete_inode.
func (i *Inode) DeleteInode(name string) defs.Err_t {
	child, err := i.FindInode(name)
	if err != 0 {
		return err
	}
	if child.IsFake() {
		return defs.EINVAL
	}
	if child.IsDir() && !emptyDir(child.chain) {
		return defs.ENOTEMPTY
	}
	if start := child.chain.firstCluster(); start != 0 {
		i.fs.clearChain(start)
	}
	return deleteDirentGroup(i.chain, child.group.offset)
}

/// Rename changes i's own name within its parent directory (spec.md §4.8
/// "Rename"). i must not be the root.
func (i *Inode) Rename(newName string) defs.Err_t {
	if i.parent == nil {
		return defs.EINVAL
	}
	if existing, err := i.parent.FindInode(newName); err == 0 && existing != i {
		return defs.EEXIST
	}
	i.group.rename(newName)
	return writeDirentGroup(i.parent.chain, &i.group)
}
