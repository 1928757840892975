package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/session"
	"github.com/drengskapur/codepick/pkg/tree"
)

func newModel(t *testing.T) Model {
	t.Helper()
	root := t.TempDir()
	for rel, body := range map[string]string{
		"main.go":     "package main\n",
		"pkg/util.go": "package pkg\n",
		"README.md":   "# demo\n",
		"logo.png":    "\x89PNG",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	o := config.Defaults()
	o.Path = root
	o.CacheDir = t.TempDir()
	o.Tokenizer = "simple"
	o.Workers = 2

	sess, err := session.Open(context.Background(), o, nil)
	require.NoError(t, err)
	m := New(context.Background(), sess, nil)
	t.Cleanup(func() {
		m.cancel()
		for range m.Results() {
		}
		_ = sess.Close()
	})
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

func visiblePaths(m Model) []string {
	var out []string
	for _, id := range m.tree.Visible() {
		out = append(out, m.tree.Node(id).RelPath)
	}
	return out
}

func TestInitialState(t *testing.T) {
	m := newModel(t)
	assert.Equal(t, TreeNormal, m.State())
	assert.Equal(t, 4, m.tree.SelectedCount(), "a fresh scan selects every matched file")
	assert.Equal(t, []string{"pkg", "pkg/util.go", "logo.png", "main.go", "README.md"}, visiblePaths(m))
	assert.Contains(t, m.View(), "codepick")
}

func TestNavigationAndToggle(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "down")
	assert.Equal(t, TreeNavigating, m.State())

	m, _ = press(m, "space")
	assert.Equal(t, TreeNormal, m.State())
	id, _ := m.tree.Find("pkg/util.go")
	assert.Equal(t, tree.Unselected, m.tree.Node(id).Selection)
	pkg, _ := m.tree.Find("pkg")
	assert.Equal(t, tree.Unselected, m.tree.Node(pkg).Selection)
	assert.Equal(t, 3, m.tree.SelectedCount())

	m, _ = press(m, "n")
	assert.Equal(t, 0, m.tree.SelectedCount())
	m, _ = press(m, "i")
	assert.Equal(t, 4, m.tree.SelectedCount())
}

func TestCollapseAndExpand(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "left")
	assert.Equal(t, []string{"pkg", "logo.png", "main.go", "README.md"}, visiblePaths(m))
	m, _ = press(m, "right")
	assert.Contains(t, visiblePaths(m), "pkg/util.go")

	// Collapsing a file moves to its parent and folds it.
	m, _ = press(m, "down", "left")
	assert.Equal(t, 0, m.cursor)
	assert.NotContains(t, visiblePaths(m), "pkg/util.go")

	// At the top level the cursor hands over to the extension pane.
	m, _ = press(m, "down", "left")
	assert.Equal(t, ExtNormal, m.State())
}

func TestPaneSwitch(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "tab")
	assert.Equal(t, ExtNormal, m.State())
	m, _ = press(m, "tab")
	assert.Equal(t, TreeNormal, m.State())
}

func TestExtensionGating(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "tab", "down", "space")

	assert.NotContains(t, visiblePaths(m), "README.md")
	assert.Equal(t, 3, m.tree.SelectedCount())
	for _, e := range m.extensions() {
		if e.Ext == "md" {
			assert.Equal(t, tree.Unselected, e.Selection())
		}
	}

	// Bulk select in the tree leaves gated files alone.
	m, _ = press(m, "tab", "n", "a")
	assert.Equal(t, 3, m.tree.SelectedCount())

	m, _ = press(m, "tab", "space")
	assert.Contains(t, visiblePaths(m), "README.md")
	assert.Equal(t, 4, m.tree.SelectedCount())
}

func TestExtensionGateKeepsFileChoices(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "down", "down", "down", "space")
	mainID, _ := m.tree.Find("main.go")
	require.Equal(t, tree.Unselected, m.tree.Node(mainID).Selection)

	m, _ = press(m, "tab", "n")
	assert.Empty(t, visiblePaths(m))
	assert.Zero(t, m.tree.SelectedCount())

	m, _ = press(m, "a")
	assert.Equal(t, tree.Unselected, m.tree.Node(mainID).Selection, "ungating restores the earlier choice")
	utilID, _ := m.tree.Find("pkg/util.go")
	assert.Equal(t, tree.Selected, m.tree.Node(utilID).Selection)
	assert.Equal(t, 3, m.tree.SelectedCount())
}

func TestExtensionFilter(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "tab", "/")
	assert.Equal(t, ExtFiltering, m.State())

	m, _ = press(m, "p", "n")
	exts := m.extensions()
	require.Len(t, exts, 1)
	assert.Equal(t, "png", exts[0].Ext)

	m, _ = press(m, "enter")
	assert.Equal(t, ExtNormal, m.State())
	assert.Len(t, m.extensions(), 1, "enter keeps the filter")

	m, _ = press(m, "/", "esc")
	assert.Equal(t, ExtNormal, m.State())
	assert.Len(t, m.extensions(), 3, "esc clears the filter")
}

func TestSettingsDiscardAndApply(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "s")
	assert.Equal(t, Settings, m.State())

	m, _ = press(m, "space", "esc")
	assert.Equal(t, TreeNormal, m.State())
	assert.False(t, m.Settings().Hidden)

	m, _ = press(m, "s", "space", "up", "right")
	assert.True(t, m.Settings().Hidden)
	assert.Equal(t, "o200k_base", m.Settings().Tokenizer)
}

func TestSettingsApplyRequestsRescan(t *testing.T) {
	m := newModel(t)
	m, cmd := press(m, "s", "down", "space", "enter")
	assert.True(t, m.State().Terminal())
	assert.Equal(t, OutcomeRescan, m.Outcome())
	assert.True(t, m.Settings().FollowSymlinks)
	require.NotNil(t, cmd)
}

func TestConfirmEndsLoop(t *testing.T) {
	m := newModel(t)
	m, cmd := press(m, "enter")
	assert.Equal(t, Confirmed, m.State())
	assert.Equal(t, OutcomeConfirmed, m.Outcome())
	require.NotNil(t, cmd)

	m, cmd = press(m, "n", "tab")
	assert.Equal(t, Confirmed, m.State(), "no input after a terminal state")
	assert.Equal(t, 4, m.tree.SelectedCount())
	assert.Nil(t, cmd)
}

func TestCancelKeys(t *testing.T) {
	for _, k := range []string{"q", "esc", "ctrl+c"} {
		m := newModel(t)
		m, _ = press(m, k)
		assert.Equal(t, Cancelled, m.State(), k)
		assert.Equal(t, OutcomeCancelled, m.Outcome())
	}

	m := newModel(t)
	m, _ = press(m, "s", "ctrl+c")
	assert.Equal(t, Cancelled, m.State(), "ctrl+c cancels from modal states")
}

func TestCountsAreApplied(t *testing.T) {
	m := newModel(t)
	for m.counting {
		next, _ := m.Update(waitForCounts(m.Results())())
		m = next.(Model)
	}
	id, _ := m.tree.Find("main.go")
	assert.True(t, m.tree.Node(id).Counted)
	assert.Equal(t, 4, m.tree.Node(id).Tokens)
	assert.Positive(t, m.tree.SelectedTokens())
	assert.Contains(t, m.status, "logo.png")
}
