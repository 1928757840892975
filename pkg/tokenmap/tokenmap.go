// Package tokenmap ranks files and directories by token cost for display.
package tokenmap

import (
	"container/heap"
	"path"
	"sort"
	"strings"
)

// Defaults for Options.
const (
	DefaultMaxLines   = 20
	DefaultMinPercent = 0.1
)

// OtherFiles labels the row summarizing tokens that did not get a row.
const OtherFiles = "(other files)"

// FileTokens is one selected file and its count.
type FileTokens struct {
	Path   string
	Tokens int
}

// Options bounds the map. MinPercent is inclusive.
type Options struct {
	MaxLines   int
	MinPercent float64
	// Flat ranks files only instead of expanding directories.
	Flat bool
}

func (o Options) withDefaults() Options {
	if o.MaxLines <= 0 {
		o.MaxLines = DefaultMaxLines
	}
	if o.MinPercent < 0 {
		o.MinPercent = 0
	}
	return o
}

// Row is one line of the map.
type Row struct {
	Path    string
	Name    string
	Tokens  int
	Percent float64
	Depth   int
	IsDir   bool
	IsLast  bool
	Other   bool
}

// Map is the ranked result.
type Map struct {
	Rows   []Row
	Total  int
	Hidden int
}

func percent(tokens, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(tokens) * 100 / float64(total)
}

// Build ranks files, or in hierarchical mode directories and files,
// descending by tokens with ties broken by path. The result never has
// more than MaxLines rows, the "(other files)" row included.
func Build(files []FileTokens, opts Options) Map {
	opts = opts.withDefaults()
	total := 0
	kept := make([]FileTokens, 0, len(files))
	for _, f := range files {
		if f.Tokens <= 0 {
			continue
		}
		total += f.Tokens
		kept = append(kept, f)
	}
	build := buildTree
	if opts.Flat {
		build = buildFlat
	}
	m := build(kept, total, opts)
	m.Hidden = total - shownTokens(m)
	if m.Hidden > 0 && len(m.Rows) >= opts.MaxLines {
		// The summary row takes one of the MaxLines.
		opts.MaxLines--
		m = build(kept, total, opts)
		m.Hidden = total - shownTokens(m)
	}
	m.Total = total
	if m.Hidden > 0 {
		m.Rows = append(m.Rows, Row{
			Path:    OtherFiles,
			Name:    OtherFiles,
			Tokens:  m.Hidden,
			Percent: percent(m.Hidden, total),
			IsLast:  true,
			Other:   true,
		})
	}
	return m
}

func shownTokens(m Map) int {
	shown := 0
	for _, r := range m.Rows {
		if !r.IsDir {
			shown += r.Tokens
		}
	}
	return shown
}

func buildFlat(files []FileTokens, total int, opts Options) Map {
	sorted := make([]FileTokens, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Tokens != sorted[j].Tokens {
			return sorted[i].Tokens > sorted[j].Tokens
		}
		return sorted[i].Path < sorted[j].Path
	})
	var m Map
	for _, f := range sorted {
		if len(m.Rows) == opts.MaxLines {
			break
		}
		p := percent(f.Tokens, total)
		if p < opts.MinPercent {
			// Sorted descending: nothing later can qualify.
			break
		}
		m.Rows = append(m.Rows, Row{Path: f.Path, Name: path.Base(f.Path), Tokens: f.Tokens, Percent: p})
	}
	for i := range m.Rows {
		m.Rows[i].IsLast = i == len(m.Rows)-1
	}
	return m
}

type node struct {
	path     string
	name     string
	tokens   int
	isDir    bool
	depth    int
	children map[string]*node
}

func (n *node) child(name string, isDir bool) *node {
	if n.children == nil {
		n.children = map[string]*node{}
	}
	c, ok := n.children[name]
	if !ok {
		p := name
		if n.path != "" {
			p = n.path + "/" + name
		}
		c = &node{path: p, name: name, isDir: isDir, depth: n.depth + 1}
		n.children[name] = c
	}
	return c
}

func (n *node) sortedChildren() []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].tokens != out[j].tokens {
			return out[i].tokens > out[j].tokens
		}
		return out[i].path < out[j].path
	})
	return out
}

// queue orders candidates by tokens, then shallower first, then path.
type queue []*node

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].tokens != q[j].tokens {
		return q[i].tokens > q[j].tokens
	}
	if q[i].depth != q[j].depth {
		return q[i].depth < q[j].depth
	}
	return q[i].path < q[j].path
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(*node)) }
func (q *queue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// buildTree expands the heaviest nodes first until MaxLines rows are
// chosen, then lays the chosen rows out in tree order.
func buildTree(files []FileTokens, total int, opts Options) Map {
	root := &node{isDir: true, depth: -1}
	for _, f := range files {
		parts := strings.Split(strings.Trim(f.Path, "/"), "/")
		cur := root
		for i, part := range parts {
			last := i == len(parts)-1
			cur = cur.child(part, !last)
			cur.tokens += f.Tokens
		}
	}

	eligible := func(n *node) bool { return percent(n.tokens, total) >= opts.MinPercent }

	allowed := map[*node]bool{}
	q := &queue{}
	for _, c := range root.children {
		if eligible(c) {
			heap.Push(q, c)
		}
	}
	for len(allowed) < opts.MaxLines && q.Len() > 0 {
		n := heap.Pop(q).(*node)
		allowed[n] = true
		for _, c := range n.children {
			if eligible(c) {
				heap.Push(q, c)
			}
		}
	}

	var m Map
	var emit func(n *node)
	emit = func(n *node) {
		var shown []*node
		for _, c := range n.sortedChildren() {
			if allowed[c] {
				shown = append(shown, c)
			}
		}
		for i, c := range shown {
			m.Rows = append(m.Rows, Row{
				Path:    c.path,
				Name:    c.name,
				Tokens:  c.tokens,
				Percent: percent(c.tokens, total),
				Depth:   c.depth,
				IsDir:   c.isDir,
				IsLast:  i == len(shown)-1,
			})
			emit(c)
		}
	}
	emit(root)
	return m
}
