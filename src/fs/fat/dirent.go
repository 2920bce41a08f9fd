package fat

import "encoding/binary"
import "strings"
import "unicode/utf16"

import "golang.org/x/text/encoding/unicode"

import "defs"

// Attribute bits (spec.md §4.8 "Directory entries", "Symbolic links").
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSys      = 0x04
	AttrVol      = 0x08
	AttrSubdir   = 0x10
	AttrFile     = 0x20
	AttrSym      = 0x80 /// reserved bit repurposed for symlinks
	attrLFN      = 0x0F /// RDONLY|HIDDEN|SYS|VOL together mark a long-name entry
)

const shortEntrySize = 32

/// ShortEntry is the 32-byte "short" directory entry (spec.md §4.8
/// "Directory entries"): an 8.3 name, attributes, timestamps, starting
/// cluster, and size. Stored as a raw byte buffer rather than a Go struct
/// with fixed fields, matching the teacher's encoding/binary idiom for
/// on-disk layouts (see kernel/chentry.go's ELF header) rather than the
/// repr(C, packed) struct casts original_source used.
type ShortEntry struct {
	raw [shortEntrySize]byte
}

func blankShortEntry() ShortEntry { return ShortEntry{} }

func decodeShortEntry(buf []byte) ShortEntry {
	var e ShortEntry
	copy(e.raw[:], buf)
	return e
}

func (e ShortEntry) Bytes() []byte { return e.raw[:] }

func (e ShortEntry) IsDeleted() bool { return e.raw[0] == 0xE5 }
func (e ShortEntry) IsEnd() bool     { return e.raw[0] == 0x00 }
func (e ShortEntry) IsLFN() bool     { return e.raw[11]&attrLFN == attrLFN }
func (e ShortEntry) Attr() byte      { return e.raw[11] }
func (e *ShortEntry) SetAttr(a byte) { e.raw[11] = a }

func (e ShortEntry) IsDir() bool      { return e.raw[11]&AttrSubdir != 0 }
func (e ShortEntry) IsSym() bool      { return e.raw[11]&AttrSym != 0 }
func (e ShortEntry) IsFile() bool     { return e.raw[11]&AttrFile != 0 }
func (e ShortEntry) IsReadOnly() bool { return e.raw[11]&AttrReadOnly != 0 }

func (e ShortEntry) Size() uint32 { return binary.LittleEndian.Uint32(e.raw[28:]) }
func (e *ShortEntry) SetSize(n uint32) {
	binary.LittleEndian.PutUint32(e.raw[28:], n)
}

func (e ShortEntry) Start() uint32 {
	hi := uint32(binary.LittleEndian.Uint16(e.raw[20:]))
	lo := uint32(binary.LittleEndian.Uint16(e.raw[26:]))
	return hi<<16 | lo
}

func (e *ShortEntry) SetStart(start uint32) {
	binary.LittleEndian.PutUint16(e.raw[20:], uint16(start>>16))
	binary.LittleEndian.PutUint16(e.raw[26:], uint16(start&0xFFFF))
}

func (e ShortEntry) isCur() bool {
	return e.raw[0] == '.' && e.raw[1] == ' '
}

func (e ShortEntry) isPar() bool {
	return e.raw[0] == '.' && e.raw[1] == '.' && e.raw[2] == ' '
}

/// ShortName renders the 8.3 name field as "NAME.EXT" (spec.md §4.8,
/// grounded on DirEntryRaw::get_name).
func (e ShortEntry) ShortName() string {
	name := strings.TrimRight(string(e.raw[0:8]), " ")
	ext := strings.TrimRight(string(e.raw[8:11]), " ")
	if ext != "" {
		return name + "." + ext
	}
	return name
}

/// SetShortName mangles name into the 8.3 field, uppercasing and
/// truncating with a "~1" suffix past 8 characters -- a faithful, if
/// crude, port of DirEntryRaw::set_name. The long-entry group carries the
/// real name; this field only needs to be a legal, collision-tolerant
/// alias.
func (e *ShortEntry) SetShortName(name string) {
	for i := range e.raw[0:11] {
		e.raw[i] = ' '
	}
	if name == "." || name == ".." {
		copy(e.raw[0:], name)
		return
	}
	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}
	b := []byte(strings.ToUpper(base))
	if len(b) > 8 {
		copy(e.raw[0:6], b[0:6])
		e.raw[6] = '~'
		e.raw[7] = '1'
	} else {
		copy(e.raw[0:8], b)
	}
	x := []byte(strings.ToUpper(ext))
	if len(x) > 3 {
		x = x[0:3]
	}
	copy(e.raw[8:11], x)
}

/// Checksum computes the LFN checksum over the 11-byte short name field
/// (spec.md §4.8 "a checksum over the corresponding short name"),
/// grounded on DirEntryRaw::chksum's rotate-and-add.
func (e ShortEntry) Checksum() byte {
	var sum byte
	for i := 0; i < 11; i++ {
		var carry byte
		if sum&1 != 0 {
			carry = 0x80
		}
		sum = carry + sum>>1 + e.raw[i]
	}
	return sum
}

const longEntrySize = 32
const extEndFlag = 0x40

/// LongEntry is one 32-byte "long" extension entry: 13 UTF-16 code units
/// (split 5/6/2), an ordinal plus end-of-group flag, and a checksum
/// tying it to the short entry it precedes (spec.md §4.8 "Directory
/// entries").
type LongEntry struct {
	raw [longEntrySize]byte
}

func decodeLongEntry(buf []byte) LongEntry {
	var e LongEntry
	copy(e.raw[:], buf)
	return e
}

func (e LongEntry) Bytes() []byte { return e.raw[:] }

func (e LongEntry) IsEnd() bool   { return e.raw[0]&extEndFlag != 0 }
func (e LongEntry) Ordinal() byte { return e.raw[0] &^ extEndFlag }

/// namePart returns the raw UTF-16LE bytes this entry carries, truncated
/// at the first 0xFF pad byte (spec.md's 0xFFFF filler; original_source
/// checks byte-wise, which this mirrors exactly).
func (e LongEntry) namePart() []byte {
	var out []byte
	collect := func(b []byte) bool {
		for _, c := range b {
			if c == 0xFF {
				return false
			}
			out = append(out, c)
		}
		return true
	}
	if !collect(e.raw[1:11]) {
		return out
	}
	if !collect(e.raw[14:26]) {
		return out
	}
	collect(e.raw[28:32])
	return out
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

/// buildLongEntries splits name into 13-code-unit chunks and returns the
/// on-disk write order: highest ordinal (carrying the EXT_END flag)
/// first, descending to ordinal 1 last, immediately before the short
/// entry (spec.md §4.8 "The last long entry OR's its index byte with
/// 0x40"). Grounded on DirEntryExtRaw::new.
func buildLongEntries(name string, chksum byte) []LongEntry {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		panic("fat: cannot encode long name as UTF-16")
	}
	units := make([]uint16, len(encoded)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(encoded[2*i:])
	}
	units = append(units, 0) // NUL terminator
	for len(units)%13 != 0 {
		units = append(units, 0xFFFF)
	}

	cnt := len(units) / 13
	forward := make([]LongEntry, cnt)
	for i := 0; i < cnt; i++ {
		var e LongEntry
		e.raw[0] = byte(i + 1)
		putUnits(e.raw[1:11], units[i*13:i*13+5])
		e.raw[11] = attrLFN
		e.raw[13] = chksum
		putUnits(e.raw[14:26], units[i*13+5:i*13+11])
		putUnits(e.raw[28:32], units[i*13+11:i*13+13])
		forward[i] = e
	}
	forward[cnt-1].raw[0] |= extEndFlag

	out := make([]LongEntry, cnt)
	for i, e := range forward {
		out[cnt-1-i] = e
	}
	return out
}

func putUnits(dst []byte, units []uint16) {
	for i, u := range units {
		binary.LittleEndian.PutUint16(dst[2*i:], u)
	}
}

/// decodeLongName reconstructs the UTF-8 name from a group of long
/// entries stored in on-disk (descending-ordinal) order: original_source
/// walks them in reverse (exts[len-1] holds ordinal 1, the first 13
/// characters) to rebuild forward order.
func decodeLongName(exts []LongEntry) (string, defs.Err_t) {
	if len(exts) == 0 {
		return "", defs.EINVAL
	}
	var raw []byte
	for i := len(exts) - 1; i >= 0; i-- {
		raw = append(raw, exts[i].namePart()...)
		if exts[i].IsEnd() {
			if i != 0 {
				return "", defs.EIO
			}
			// raw may carry an odd trailing byte from a 0xFF-truncated
			// name part; decode only the even-aligned prefix.
			raw = raw[:len(raw)-len(raw)%2]
			nulAt := len(raw)
			for j := 0; j+1 < len(raw); j += 2 {
				if raw[j] == 0 && raw[j+1] == 0 {
					nulAt = j
					break
				}
			}
			raw = raw[:nulAt]
			units := make([]uint16, len(raw)/2)
			for j := range units {
				units[j] = binary.LittleEndian.Uint16(raw[2*j:])
			}
			return string(utf16.Decode(units)), 0
		}
	}
	return "", defs.EIO
}

/// DirentGroup pairs a short entry with the long-entry group (if any)
/// that spells out its full name, plus where it lives in its directory's
/// chain (spec.md §4.8 "Directory entries").
type DirentGroup struct {
	Exts     []LongEntry
	Entry    ShortEntry
	offset   int
	slotsize int
}

/// rootGroup synthesizes the directory-entry group for the root
/// directory, which has no entry of its own since it isn't inside any
/// directory (spec.md's Inode::root via DirEntryGroup::root).
func rootGroup() DirentGroup {
	e := blankShortEntry()
	e.SetAttr(AttrSubdir)
	return DirentGroup{Entry: e}
}

func newDirentGroup(name string, start uint32, attr byte) DirentGroup {
	e := blankShortEntry()
	e.SetAttr(attr)
	e.SetShortName(name)
	e.SetStart(start)
	return DirentGroup{Entry: e, Exts: buildLongEntries(name, e.Checksum())}
}

func (g *DirentGroup) rename(name string) {
	g.Entry.SetShortName(name)
	g.Exts = buildLongEntries(name, g.Entry.Checksum())
}

func (g DirentGroup) isCur() bool { return g.Entry.isCur() }
func (g DirentGroup) isPar() bool { return g.Entry.isPar() }

func (g DirentGroup) name() (string, defs.Err_t) {
	if len(g.Exts) > 0 {
		return decodeLongName(g.Exts)
	}
	return g.Entry.ShortName(), 0
}

func (g DirentGroup) start() uint32 { return g.Entry.Start() }

/// emptyDir reports whether chain, a directory's own cluster chain,
/// contains only the synthetic "." and ".." entries (spec.md §4.8
/// "Remove refuses to remove a non-empty directory").
func emptyDir(chain *Chain) bool {
	offset := 0
	for {
		g, next, err := readDirentGroup(chain, offset)
		if err != 0 {
			return true
		}
		if !g.isCur() && !g.isPar() {
			return false
		}
		offset = next
	}
}

/// readDirentGroup reads the next non-deleted entry (and any long-entry
/// extensions preceding it) starting at offset within chain, returning
/// the group and the offset to resume scanning from (spec.md §4.8
/// "Directory entries"). Grounded on dirent::read_dirent_group.
func readDirentGroup(chain *Chain, offset int) (DirentGroup, int, defs.Err_t) {
	var exts []LongEntry
	off := offset
	slotsize := 0
	buf := make([]byte, shortEntrySize)
	for {
		if n := chain.Read(off, buf); n != shortEntrySize {
			return DirentGroup{}, 0, defs.EIO
		}
		slotsize++
		off += shortEntrySize
		if buf[0] == 0xE5 {
			continue
		}
		if buf[11]&attrLFN != attrLFN {
			break
		}
		exts = append(exts, decodeLongEntry(buf))
	}
	if buf[0] == 0x00 {
		return DirentGroup{}, 0, defs.ENOENT
	}
	return DirentGroup{
		Exts:     exts,
		Entry:    decodeShortEntry(buf),
		offset:   offset,
		slotsize: slotsize,
	}, off, 0
}

/// writeDirentGroup stores group into chain: updated in place if it
/// already occupies a slot wide enough for its (possibly new) long-entry
/// count, otherwise appended at the directory's end with the old slot
/// marked deleted (spec.md §4.8 "Rename"). Grounded on
/// dirent::write_dirent_group.
func writeDirentGroup(chain *Chain, group *DirentGroup) defs.Err_t {
	if group.slotsize == 0 {
		offset, free := findFreeSlot(chain)
		group.offset = offset - free*shortEntrySize
		off := offset
		for _, ext := range group.Exts {
			chain.Write(off, ext.Bytes())
			off += longEntrySize
		}
		chain.Write(off, group.Entry.Bytes())
		group.slotsize = len(group.Exts) + 1 + free
		return 0
	}
	if group.slotsize < len(group.Exts)+1 {
		offset := group.offset
		group.slotsize = 0
		if err := writeDirentGroup(chain, group); err != 0 {
			return err
		}
		return deleteDirentGroup(chain, offset)
	}
	off := group.offset + (group.slotsize-len(group.Exts)-1)*shortEntrySize
	for _, ext := range group.Exts {
		chain.Write(off, ext.Bytes())
		off += longEntrySize
	}
	chain.Write(off, group.Entry.Bytes())
	return 0
}

/// findFreeSlot scans chain to its end (the first 0x00 entry or the end of
/// the chain), returning that offset and how many already-deleted slots
/// directly precede it. Deleted runs earlier in the chain are not reused.
func findFreeSlot(chain *Chain) (offset int, precedingDeleted int) {
	slotsize := 0
	var b [1]byte
	for {
		if chain.Read(offset, b[:]) == 0 {
			break
		}
		if b[0] == 0x00 {
			break
		}
		if b[0] == 0xE5 {
			slotsize++
		} else {
			slotsize = 0
		}
		offset += shortEntrySize
	}
	return offset, slotsize
}

/// deleteDirentGroup marks the entry (and any long-entry extensions
/// preceding it) at offset within chain as deleted (spec.md §4.8
/// "Deleted entries have name[0] = 0xE5").
func deleteDirentGroup(chain *Chain, offset int) defs.Err_t {
	off := offset
	buf := make([]byte, shortEntrySize)
	for {
		if n := chain.Read(off, buf); n != shortEntrySize {
			return defs.EIO
		}
		if buf[0] == 0x00 {
			return defs.ENOENT
		}
		if buf[0] == 0xE5 {
			off += shortEntrySize
			continue
		}
		wasExt := buf[11]&attrLFN == attrLFN
		if buf[0] != 0xE5 {
			buf[0] = 0xE5
			chain.Write(off, buf)
		}
		off += shortEntrySize
		if !wasExt {
			return 0
		}
	}
}
