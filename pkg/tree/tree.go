// Package tree holds the navigable project tree and its tri-state
// selection.
//
// All nodes live in one arena and refer to each other by ID. A parent
// always has a smaller ID than any of its descendants, which lets bulk
// operations recompute directory state in a single reverse sweep.
package tree

import (
	"errors"
	"path"
	"strings"

	"github.com/drengskapur/codepick/pkg/pattern"
	"github.com/drengskapur/codepick/pkg/scan"
)

// ErrInvalidSelection is returned for Partial on a file, or for any
// explicit Partial request.
var ErrInvalidSelection = errors.New("invalid selection state")

// ID is a handle into the arena.
type ID int32

const (
	// Root is the synthetic project root.
	Root ID = 0
	// None marks a missing node.
	None ID = -1
)

// Selection is the tri-state selection of a node.
type Selection uint8

const (
	Unselected Selection = iota
	Selected
	Partial
)

func (s Selection) String() string {
	switch s {
	case Selected:
		return "selected"
	case Partial:
		return "partial"
	default:
		return "unselected"
	}
}

// Kind aliases the scanner's entry kind.
type Kind = scan.Kind

// Node is one filesystem entry in the arena.
type Node struct {
	Name      string
	RelPath   string
	Kind      Kind
	Size      int64
	ModTime   int64
	Parent    ID
	Children  []ID
	Matched   bool
	Selection Selection
	Tokens    int
	Counted   bool
	Expanded  bool

	// Directory aggregates over matched descendant files. selectedFiles
	// and selectedTokens only count files the mask accepts.
	matchedFiles   int
	selectedFiles  int
	selectedTokens int
	visibleFiles   int
}

// IsDir reports whether the node can have children.
func (n *Node) IsDir() bool { return n.Kind.IsDir() }

// IsFile reports whether the node carries content.
func (n *Node) IsFile() bool { return !n.Kind.IsDir() }

// Extension returns the node's lower-cased extension.
func (n *Node) Extension() string { return pattern.Extension(n.Name) }

// MatchedFiles is the number of matched files at or below the node.
func (n *Node) MatchedFiles() int {
	if n.IsFile() {
		if n.Matched {
			return 1
		}
		return 0
	}
	return n.matchedFiles
}

// SelectedFiles is the number of selected files at or below the node.
func (n *Node) SelectedFiles() int {
	if n.IsFile() {
		if n.Selection == Selected {
			return 1
		}
		return 0
	}
	return n.selectedFiles
}

// Matcher is satisfied by *pattern.Matcher.
type Matcher interface {
	Match(relPath string, isDir bool) bool
}

// Predicate restricts bulk operations. A nil Predicate accepts every node.
type Predicate func(*Node) bool

// Tree owns every Node of a scan.
type Tree struct {
	nodes   []Node
	index   map[string]ID
	mask    Predicate
	version uint64
}

// Build creates a tree from scan entries. Entries must be sorted by path,
// which scan.Result guarantees; missing parent directories are created.
// All nodes start unselected.
func Build(rootName string, entries []scan.Entry, m Matcher) *Tree {
	t := &Tree{
		nodes: make([]Node, 1, len(entries)+1),
		index: make(map[string]ID, len(entries)+1),
	}
	t.nodes[Root] = Node{Name: rootName, Kind: scan.KindDir, Parent: None, Matched: true, Expanded: true}
	t.index[""] = Root

	for _, e := range entries {
		rel := strings.Trim(e.RelPath, "/")
		if rel == "" {
			continue
		}
		if _, dup := t.index[rel]; dup {
			continue
		}
		parent := t.ensureDir(path.Dir(rel))
		matched := m == nil || m.Match(rel, e.Kind.IsDir())
		t.add(parent, Node{
			Name:    path.Base(rel),
			RelPath: rel,
			Kind:    e.Kind,
			Size:    e.Size,
			ModTime: e.ModTime,
			Matched: matched,
		})
	}
	t.recompute()
	return t
}

func (t *Tree) ensureDir(rel string) ID {
	if rel == "." || rel == "" {
		return Root
	}
	if id, ok := t.index[rel]; ok {
		return id
	}
	parent := t.ensureDir(path.Dir(rel))
	return t.add(parent, Node{Name: path.Base(rel), RelPath: rel, Kind: scan.KindDir, Matched: true})
}

func (t *Tree) add(parent ID, n Node) ID {
	id := ID(len(t.nodes))
	n.Parent = parent
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	t.index[n.RelPath] = id
	return id
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at id. The pointer is valid until the next Build.
func (t *Tree) Node(id ID) *Node { return &t.nodes[id] }

// Find returns the node with the given relative path.
func (t *Tree) Find(relPath string) (ID, bool) {
	id, ok := t.index[strings.Trim(relPath, "/")]
	return id, ok
}

// Version changes whenever selection, tokens or visibility change, so
// views can cache derived data.
func (t *Tree) Version() uint64 { return t.version }

// Depth returns the number of ancestors below the root; top-level entries
// have depth 0.
func (t *Tree) Depth(id ID) int {
	d := -1
	for p := t.nodes[id].Parent; p != None; p = t.nodes[p].Parent {
		d++
	}
	return d
}

// active reports whether the mask accepts a matched file.
func (t *Tree) active(n *Node) bool {
	return n.Matched && (t.mask == nil || t.mask(n))
}

// counts reports whether a file contributes to selection totals.
func (t *Tree) counts(n *Node) bool {
	return n.Selection == Selected && t.active(n)
}

func derive(matched, selected int) Selection {
	switch {
	case matched == 0 || selected == 0:
		return Unselected
	case selected == matched:
		return Selected
	default:
		return Partial
	}
}

// recompute rebuilds every directory aggregate bottom-up.
func (t *Tree) recompute() {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsDir() {
			n.matchedFiles, n.selectedFiles, n.selectedTokens, n.visibleFiles = 0, 0, 0, 0
		}
	}
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := &t.nodes[i]
		if n.IsDir() {
			n.Selection = derive(n.visibleFiles, n.selectedFiles)
		} else if !n.Matched {
			n.Selection = Unselected
		}
		if n.Parent == None {
			continue
		}
		p := &t.nodes[n.Parent]
		if n.IsDir() {
			p.matchedFiles += n.matchedFiles
			p.selectedFiles += n.selectedFiles
			p.selectedTokens += n.selectedTokens
			p.visibleFiles += n.visibleFiles
			continue
		}
		if !n.Matched {
			continue
		}
		p.matchedFiles++
		if !t.active(n) {
			continue
		}
		p.visibleFiles++
		if n.Selection == Selected {
			p.selectedFiles++
			if n.Counted {
				p.selectedTokens += n.Tokens
			}
		}
	}
	t.version++
}

// propagate applies counter deltas to every ancestor of id, which costs
// time proportional to depth.
func (t *Tree) propagate(id ID, dSelected, dTokens int) {
	for p := t.nodes[id].Parent; p != None; p = t.nodes[p].Parent {
		n := &t.nodes[p]
		n.selectedFiles += dSelected
		n.selectedTokens += dTokens
		n.Selection = derive(n.visibleFiles, n.selectedFiles)
	}
	t.version++
}

func (t *Tree) setFile(id ID, selected bool) {
	n := &t.nodes[id]
	if !n.Matched || (n.Selection == Selected) == selected {
		return
	}
	if selected {
		n.Selection = Selected
	} else {
		n.Selection = Unselected
	}
	if !t.active(n) {
		t.version++
		return
	}
	d := 1
	if !selected {
		d = -1
	}
	tok := 0
	if n.Counted {
		tok = n.Tokens * d
	}
	t.propagate(id, d, tok)
}

// setSubtree assigns every unmasked matched file under dir, then repairs
// the subtree and the ancestor chain once.
func (t *Tree) setSubtree(dir ID, selected bool) {
	before := t.nodes[dir]
	var walk func(ID)
	walk = func(id ID) {
		n := &t.nodes[id]
		if n.IsFile() {
			if t.active(n) {
				if selected {
					n.Selection = Selected
				} else {
					n.Selection = Unselected
				}
			}
			return
		}
		n.selectedFiles, n.selectedTokens = 0, 0
		for _, c := range n.Children {
			walk(c)
			child := &t.nodes[c]
			if child.IsDir() {
				n.selectedFiles += child.selectedFiles
				n.selectedTokens += child.selectedTokens
			} else if t.counts(child) {
				n.selectedFiles++
				if child.Counted {
					n.selectedTokens += child.Tokens
				}
			}
		}
		n.Selection = derive(n.visibleFiles, n.selectedFiles)
	}
	walk(dir)
	after := t.nodes[dir]
	t.propagate(dir, after.selectedFiles-before.selectedFiles, after.selectedTokens-before.selectedTokens)
}

// Toggle flips a file, or applies a directory's target state to all of
// its unmasked matched files: a selected directory clears, anything else
// selects.
func (t *Tree) Toggle(id ID) {
	n := &t.nodes[id]
	if n.IsFile() {
		t.setFile(id, n.Selection != Selected)
		return
	}
	t.setSubtree(id, n.Selection != Selected)
}

// SetSelection forces a node into state. Partial cannot be requested.
func (t *Tree) SetSelection(id ID, state Selection) error {
	if state == Partial {
		return ErrInvalidSelection
	}
	if t.nodes[id].IsFile() {
		t.setFile(id, state == Selected)
	} else {
		t.setSubtree(id, state == Selected)
	}
	return nil
}

func (t *Tree) bulk(pred Predicate, fn func(*Node)) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsFile() && t.active(n) && (pred == nil || pred(n)) {
			fn(n)
		}
	}
	t.recompute()
}

// SelectAll selects every unmasked matched file accepted by pred.
func (t *Tree) SelectAll(pred Predicate) {
	t.bulk(pred, func(n *Node) { n.Selection = Selected })
}

// DeselectAll clears every unmasked matched file accepted by pred.
func (t *Tree) DeselectAll(pred Predicate) {
	t.bulk(pred, func(n *Node) { n.Selection = Unselected })
}

// Invert flips every unmasked matched file accepted by pred.
func (t *Tree) Invert(pred Predicate) {
	t.bulk(pred, func(n *Node) {
		if n.Selection == Selected {
			n.Selection = Unselected
		} else {
			n.Selection = Selected
		}
	})
}

// ApplySelection replaces the selection with paths. It returns the paths
// that no longer name a matched file.
func (t *Tree) ApplySelection(paths []string) (missing []string) {
	for i := range t.nodes {
		if t.nodes[i].IsFile() {
			t.nodes[i].Selection = Unselected
		}
	}
	for _, p := range paths {
		id, ok := t.Find(p)
		if !ok || !t.nodes[id].IsFile() || !t.nodes[id].Matched {
			missing = append(missing, p)
			continue
		}
		t.nodes[id].Selection = Selected
	}
	t.recompute()
	return missing
}

// SetTokens records a token count for a file.
func (t *Tree) SetTokens(id ID, tokens int) {
	n := &t.nodes[id]
	if n.IsDir() {
		return
	}
	old := 0
	if n.Counted {
		old = n.Tokens
	}
	n.Tokens, n.Counted = tokens, true
	if t.counts(n) {
		t.propagate(id, 0, tokens-old)
		return
	}
	t.version++
}

// Tokens returns a file's count, or the sum over a directory's selected
// files.
func (t *Tree) Tokens(id ID) int {
	n := &t.nodes[id]
	if n.IsDir() {
		return n.selectedTokens
	}
	return n.Tokens
}

// SelectedCount is the number of selected unmasked files in the whole
// tree.
func (t *Tree) SelectedCount() int { return t.nodes[Root].selectedFiles }

// MatchedCount is the number of matched files in the whole tree.
func (t *Tree) MatchedCount() int { return t.nodes[Root].matchedFiles }

// SelectedTokens is the token total over counted selected unmasked files.
func (t *Tree) SelectedTokens() int { return t.nodes[Root].selectedTokens }

// Walk visits nodes depth-first in display order, skipping the root. fn
// returning false prunes the node's children.
func (t *Tree) Walk(fn func(ID, *Node) bool) {
	var walk func(ID)
	walk = func(id ID) {
		for _, c := range t.nodes[id].Children {
			if fn(c, &t.nodes[c]) && t.nodes[c].IsDir() {
				walk(c)
			}
		}
	}
	walk(Root)
}

// SelectedFiles returns selected unmasked files in display order.
func (t *Tree) SelectedFiles() []ID {
	out := make([]ID, 0, t.SelectedCount())
	t.Walk(func(id ID, n *Node) bool {
		if n.IsDir() {
			return n.selectedFiles > 0
		}
		if t.counts(n) {
			out = append(out, id)
		}
		return false
	})
	return out
}

// SelectedPaths returns the relative paths of SelectedFiles.
func (t *Tree) SelectedPaths() []string {
	ids := t.SelectedFiles()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id].RelPath
	}
	return out
}

// MatchedFiles returns every matched file in display order.
func (t *Tree) MatchedFiles() []ID {
	out := make([]ID, 0, t.MatchedCount())
	t.Walk(func(id ID, n *Node) bool {
		if n.IsDir() {
			return n.matchedFiles > 0
		}
		if n.Matched {
			out = append(out, id)
		}
		return false
	})
	return out
}
