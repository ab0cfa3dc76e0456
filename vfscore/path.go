package vfscore

import "strings"

// canonicalizePath collapses duplicate separators, strips a leading "./"
// and trailing slashes, but deliberately preserves ".." segments literally
// — the tree resolver relies on ".." staying in the string rather than
// being squashed away by a generic path.Clean (spec.md §4.C step 1, and
// the boundary grammar note in §6).
func canonicalizePath(p string) string {
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	var b strings.Builder
	b.Grow(len(p))
	lastWasSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if lastWasSlash {
				continue
			}
			lastWasSlash = true
		} else {
			lastWasSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	for len(out) > 1 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

// nextSegment returns the first path component of p (up to the next '/'
// or end of string) and the rest of the path with that component and one
// separator consumed.
func nextSegment(p string) (seg, rest string) {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}

func skipLeadingSlashes(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
