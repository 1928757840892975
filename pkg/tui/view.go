package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/drengskapur/codepick/pkg/tokenmap"
	"github.com/drengskapur/codepick/pkg/tree"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeStyle   = paneStyle.BorderForeground(lipgloss.Color("75"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	settingsStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("62")).Padding(1, 2)
)

const extPaneWidth = 26

func checkbox(s tree.Selection) string {
	switch s {
	case tree.Selected:
		return checkedStyle.Render("[x]")
	case tree.Partial:
		return partialStyle.Render("[-]")
	default:
		return "[ ]"
	}
}

// View renders the picker.
func (m Model) View() string {
	if m.state.Terminal() {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("codepick ▸ " + filepath.Base(m.sess.Root())))
	b.WriteString("\n")

	if m.state == Settings {
		b.WriteString(m.settingsView())
	} else {
		bodyHeight := m.height - 6
		if bodyHeight < 3 {
			bodyHeight = 3
		}
		ext := m.extView(bodyHeight)
		tr := m.treeView(bodyHeight, m.width-extPaneWidth-8)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, ext, tr))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.helpLine())
	return b.String()
}

func (m Model) extView(height int) string {
	exts := m.extensions()
	var lines []string
	if m.state == ExtFiltering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
		height--
	}
	start := scrollStart(m.extCursor, len(exts), height)
	for i := start; i < len(exts) && i < start+height; i++ {
		e := exts[i]
		box := checkbox(e.Selection())
		label := truncate(e.Label(), 8)
		if m.gated[e.Ext] {
			box = "[ ]"
			label = dimStyle.Render(fmt.Sprintf("%-8s", label))
		} else {
			label = fmt.Sprintf("%-8s", label)
		}
		line := fmt.Sprintf("%s %s %6s", box, label, tokenmap.FormatTokens(e.Tokens))
		if i == m.extCursor && !m.state.inTree() {
			line = cursorStyle.Render("›") + line
		} else {
			line = " " + line
		}
		lines = append(lines, line)
	}
	if len(exts) == 0 {
		lines = append(lines, dimStyle.Render("no file types"))
	}
	style := paneStyle
	if !m.state.inTree() {
		style = activeStyle
	}
	return style.Width(extPaneWidth).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) treeView(height, width int) string {
	if width < 20 {
		width = 20
	}
	visible := m.tree.Visible()
	cursor := clamp(m.cursor, len(visible))
	start := scrollStart(cursor, len(visible), height)

	var lines []string
	for i := start; i < len(visible) && i < start+height; i++ {
		id := visible[i]
		n := m.tree.Node(id)
		indent := strings.Repeat("  ", m.tree.Depth(id))
		marker := "  "
		name := n.Name
		if n.IsDir() {
			marker = "▸ "
			if n.Expanded || m.tree.Masked() {
				marker = "▾ "
			}
			name += "/"
		}
		tokens := ""
		switch {
		case n.IsDir():
			tokens = tokenmap.FormatTokens(m.tree.Tokens(id))
		case n.Counted:
			tokens = tokenmap.FormatTokens(n.Tokens)
		default:
			tokens = dimStyle.Render("…")
		}
		left := fmt.Sprintf("%s%s %s%s", indent, checkbox(n.Selection), marker, name)
		pad := width - lipgloss.Width(left) - lipgloss.Width(tokens) - 2
		if pad < 1 {
			pad = 1
		}
		line := left + strings.Repeat(" ", pad) + tokens
		if i == cursor && m.state.inTree() {
			line = cursorStyle.Render("›") + line
		} else {
			line = " " + line
		}
		lines = append(lines, line)
	}
	if len(visible) == 0 {
		lines = append(lines, dimStyle.Render("no matching files"))
	}
	style := paneStyle
	if m.state.inTree() {
		style = activeStyle
	}
	return style.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) settingsView() string {
	var lines []string
	lines = append(lines, titleStyle.Render("Settings (enter to apply, esc to cancel)"), "")
	for i, s := range allSettings {
		row := s.row(m.settings)
		if i == m.settingsCursor {
			row = cursorStyle.Render("› " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	return settingsStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) statusLine() string {
	parts := []string{
		fmt.Sprintf("%s/%s files", tokenmap.FormatCount(m.tree.SelectedCount()), tokenmap.FormatCount(m.tree.MatchedCount())),
		fmt.Sprintf("%s tokens", tokenmap.FormatCount(m.tree.SelectedTokens())),
		m.sess.TokenizerID(),
	}
	if m.counting {
		parts = append(parts, m.spinner.View()+"counting")
	}
	if m.sess.FromCache() {
		parts = append(parts, "cached")
	}
	line := strings.Join(parts, " · ")
	if m.status != "" {
		line += "  " + statusStyle.Render(m.status)
	}
	return line
}

func (m Model) helpLine() string {
	var parts []string
	for _, b := range m.keys.shortHelp(m.state) {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return dimStyle.Render(strings.Join(parts, " • "))
}

// scrollStart keeps the cursor inside a window of height rows.
func scrollStart(cursor, n, height int) int {
	if height <= 0 || n <= height {
		return 0
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start > n-height {
		start = n - height
	}
	return start
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
