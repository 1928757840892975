package tree

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey orders siblings.
type SortKey string

const (
	NameAsc  SortKey = "name-asc"
	NameDesc SortKey = "name-desc"
	DateAsc  SortKey = "date-asc"
	DateDesc SortKey = "date-desc"
)

// SortKeys lists every accepted key.
var SortKeys = []SortKey{NameAsc, NameDesc, DateAsc, DateDesc}

// ParseSortKey validates s. An empty string means NameAsc.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return NameAsc, nil
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q (want one of name-asc, name-desc, date-asc, date-desc)", s)
}

// Sort reorders the children of every directory. Name orders list
// directories first; date orders interleave them.
func (t *Tree) Sort(key SortKey) {
	less := func(a, b *Node) bool {
		switch key {
		case NameDesc:
			if a.IsDir() != b.IsDir() {
				return a.IsDir()
			}
			return strings.ToLower(a.Name) > strings.ToLower(b.Name)
		case DateAsc:
			if a.ModTime != b.ModTime {
				return a.ModTime < b.ModTime
			}
			return a.Name < b.Name
		case DateDesc:
			if a.ModTime != b.ModTime {
				return a.ModTime > b.ModTime
			}
			return a.Name < b.Name
		default:
			if a.IsDir() != b.IsDir() {
				return a.IsDir()
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	for i := range t.nodes {
		children := t.nodes[i].Children
		sort.SliceStable(children, func(x, y int) bool {
			return less(&t.nodes[children[x]], &t.nodes[children[y]])
		})
	}
	t.version++
}

// SetMask restricts the tree to files accepted by fn. Masked files are
// hidden, left out of selection totals, SelectedFiles and bulk
// operations, and keep their own Selection until the mask lifts. A nil fn
// clears the mask.
func (t *Tree) SetMask(fn Predicate) {
	t.mask = fn
	t.recompute()
}

// Masked reports whether a mask is active.
func (t *Tree) Masked() bool { return t.mask != nil }

// Shown reports whether a node passes the matcher and the mask.
func (t *Tree) Shown(id ID) bool {
	n := &t.nodes[id]
	if n.IsDir() {
		return n.visibleFiles > 0
	}
	return t.active(n)
}

// Visible returns shown nodes in display order, descending only into
// expanded directories. While a mask is active every directory is
// treated as expanded so matches are never hidden by a collapsed parent.
func (t *Tree) Visible() []ID {
	var out []ID
	t.Walk(func(id ID, n *Node) bool {
		if !t.Shown(id) {
			return false
		}
		out = append(out, id)
		return n.IsDir() && (n.Expanded || t.mask != nil)
	})
	return out
}

// Expand opens a directory.
func (t *Tree) Expand(id ID) bool {
	n := &t.nodes[id]
	if !n.IsDir() || n.Expanded {
		return false
	}
	n.Expanded = true
	t.version++
	return true
}

// Collapse closes a directory.
func (t *Tree) Collapse(id ID) bool {
	n := &t.nodes[id]
	if !n.IsDir() || !n.Expanded || id == Root {
		return false
	}
	n.Expanded = false
	t.version++
	return true
}

// ExpandToDepth opens every directory shallower than depth.
func (t *Tree) ExpandToDepth(depth int) {
	t.Walk(func(id ID, n *Node) bool {
		if n.IsDir() && t.Depth(id) < depth {
			n.Expanded = true
			return true
		}
		return false
	})
	t.version++
}

// Parent returns the parent of id, or None for top-level entries.
func (t *Tree) Parent(id ID) ID {
	p := t.nodes[id].Parent
	if p == Root {
		return None
	}
	return p
}

// ExtStat aggregates matched files sharing an extension.
type ExtStat struct {
	Ext      string
	Files    int
	Selected int
	Tokens   int
}

// Selection derives the extension's tri-state.
func (e ExtStat) Selection() Selection { return derive(e.Files, e.Selected) }

// Label is the display name; files without an extension group under
// "(none)".
func (e ExtStat) Label() string {
	if e.Ext == "" {
		return "(none)"
	}
	return "." + e.Ext
}

// Extensions groups matched files by extension, sorted by name. Masked
// files count toward Files but never toward Selected or Tokens.
func (t *Tree) Extensions() []ExtStat {
	byExt := map[string]*ExtStat{}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsDir() || !n.Matched {
			continue
		}
		ext := n.Extension()
		s, ok := byExt[ext]
		if !ok {
			s = &ExtStat{Ext: ext}
			byExt[ext] = s
		}
		s.Files++
		if t.counts(n) {
			s.Selected++
			if n.Counted {
				s.Tokens += n.Tokens
			}
		}
	}
	out := make([]ExtStat, 0, len(byExt))
	for _, s := range byExt {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ext < out[j].Ext })
	return out
}

// HasExtension returns a Predicate accepting files with one of exts.
func HasExtension(exts ...string) Predicate {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return func(n *Node) bool {
		_, ok := set[n.Extension()]
		return ok
	}
}
