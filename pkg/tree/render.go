package tree

import (
	"fmt"
	"strings"
)

// RenderSelected draws the selected part of the tree with box-drawing
// connectors, directories suffixed with '/'.
func (t *Tree) RenderSelected() string {
	var b strings.Builder
	b.WriteString(t.nodes[Root].Name + "/\n")
	t.render(&b, Root, "", func(n *Node) bool {
		if n.IsDir() {
			return n.selectedFiles > 0
		}
		return t.counts(n)
	})
	return b.String()
}

func (t *Tree) render(b *strings.Builder, id ID, prefix string, keep func(*Node) bool) {
	var children []ID
	for _, c := range t.nodes[id].Children {
		if keep(&t.nodes[c]) {
			children = append(children, c)
		}
	}
	for i, c := range children {
		connector := "├── "
		extension := "│   "
		if i == len(children)-1 {
			connector = "└── "
			extension = "    "
		}
		n := &t.nodes[c]
		if n.IsDir() {
			fmt.Fprintf(b, "%s%s%s/\n", prefix, connector, n.Name)
			t.render(b, c, prefix+extension, keep)
			continue
		}
		fmt.Fprintf(b, "%s%s%s\n", prefix, connector, n.Name)
	}
}
