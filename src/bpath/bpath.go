// Package bpath parses and canonicalizes VFS paths (spec.md §4.9, §6). A
// path is a sequence of '/'-separated components plus two bits: whether it
// is absolute and whether the caller requires the final component to be a
// directory (a trailing slash). '.' and '..' are collapsed during parsing;
// parsing refuses to walk above the root.
package bpath

import (
	"strings"

	"defs"
	"ustr"
)

/// Path_t is a parsed, canonical path.
type Path_t struct {
	Abs    bool        /// began with '/'
	Mustdir bool       /// caller wrote a trailing '/'
	Comps  []ustr.Ustr /// canonical components, no '.', no '..'
}

/// Parse splits and canonicalizes p. It collapses "." and ".." components
/// and fails with EINVAL if ".." would walk above the root of an absolute
/// path.
func Parse(p ustr.Ustr) (Path_t, defs.Err_t) {
	s := p.String()
	abs := strings.HasPrefix(s, "/")
	mustdir := len(s) > 0 && strings.HasSuffix(s, "/") && s != "/"

	var out []ustr.Ustr
	for _, raw := range strings.Split(s, "/") {
		if raw == "" || raw == "." {
			continue
		}
		if raw == ".." {
			if len(out) == 0 {
				if abs {
					return Path_t{}, defs.EINVAL
				}
				out = append(out, ustr.DotDot)
				continue
			}
			if out[len(out)-1].Isdotdot() {
				out = append(out, ustr.DotDot)
				continue
			}
			out = out[:len(out)-1]
			continue
		}
		if len(raw) > 255 {
			return Path_t{}, defs.ENAMETOOLONG
		}
		out = append(out, ustr.Ustr(raw))
	}
	return Path_t{Abs: abs, Mustdir: mustdir, Comps: out}, 0
}

/// String renders the canonical path back to a Ustr.
func (pp Path_t) String() ustr.Ustr {
	var b strings.Builder
	if pp.Abs {
		b.WriteByte('/')
	}
	for i, c := range pp.Comps {
		if i > 0 {
			b.WriteByte('/')
		}
		b.Write(c)
	}
	if pp.Mustdir && !strings.HasSuffix(b.String(), "/") {
		b.WriteByte('/')
	}
	if b.Len() == 0 {
		b.WriteByte('.')
	}
	return ustr.Ustr(b.String())
}

/// Equal reports whether two paths resolve to the same canonical form.
func Equal(a, b ustr.Ustr) bool {
	pa, erra := Parse(a)
	pb, errb := Parse(b)
	if erra != 0 || errb != 0 {
		return a.Eq(b)
	}
	return pa.String().Eq(pb.String())
}

/// Canonicalize is the common entry point used by Cwd_t and the mount
/// manager: parse then re-render, producing a slash-normalized absolute
/// path with no "." or ".." components.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	pp, err := Parse(p)
	if err != 0 {
		// A path with a leading ".." above root has no canonical form;
		// callers that need to surface EINVAL should call Parse directly.
		return p
	}
	return pp.String()
}

/// Valid83 reports whether name satisfies the legacy 8.3 grammar: letters,
/// digits and underscore, a single '.', name part <=8, extension <=3
/// (spec.md §4.9).
func Valid83(name string) bool {
	if name == "" || len(name) > 12 {
		return false
	}
	dot := strings.IndexByte(name, '.')
	base, ext := name, ""
	if dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
		if strings.IndexByte(ext, '.') >= 0 {
			return false
		}
	}
	if len(base) == 0 || len(base) > 8 || len(ext) > 3 {
		return false
	}
	isOk := func(r byte) bool {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return true
		}
		return false
	}
	for i := 0; i < len(base); i++ {
		if !isOk(base[i]) {
			return false
		}
	}
	for i := 0; i < len(ext); i++ {
		if !isOk(ext[i]) {
			return false
		}
	}
	return true
}
