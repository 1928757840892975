package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/tree"
)

var projectFiles = map[string]string{
	".gitignore":              "build/\n",
	"main.go":                 "package main\n",
	"pkg/util.go":             "package pkg\n\nfunc Util() {}\n",
	"README.md":               "# demo\n",
	"logo.png":                "\x89PNG",
	"build/out.txt":           "artifact",
	"node_modules/x/index.js": "module.exports = 1",
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range projectFiles {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func options(root, cacheDir string) config.Options {
	o := config.Defaults()
	o.Path = root
	o.CacheDir = cacheDir
	o.Tokenizer = "simple"
	o.Workers = 2
	return o
}

func open(t *testing.T, o config.Options) *Session {
	t.Helper()
	s, err := Open(context.Background(), o, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenScansAndSelectsMatched(t *testing.T) {
	root := writeProject(t)
	s := open(t, options(root, t.TempDir()))

	assert.False(t, s.FromCache())
	assert.Equal(t, 4, s.Tree().MatchedCount())
	assert.Equal(t, 4, s.Tree().SelectedCount())
	_, ok := s.Tree().Find("build/out.txt")
	assert.False(t, ok, "gitignored paths are never scanned")
	_, ok = s.Tree().Find("node_modules")
	assert.False(t, ok)
}

func TestSecondOpenHitsCache(t *testing.T) {
	root := writeProject(t)
	cacheDir := t.TempDir()
	first := open(t, options(root, cacheDir))
	path := first.Cache().Path(first.Root())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second := open(t, options(root, cacheDir))
	assert.True(t, second.FromCache())
	assert.Equal(t, first.Tree().SelectedPaths(), second.Tree().SelectedPaths())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRescanBypassesCache(t *testing.T) {
	root := writeProject(t)
	cacheDir := t.TempDir()
	open(t, options(root, cacheDir))

	o := options(root, cacheDir)
	o.Rescan = true
	assert.False(t, open(t, o).FromCache())
}

func TestIgnoreFileChangeInvalidates(t *testing.T) {
	root := writeProject(t)
	cacheDir := t.TempDir()
	open(t, options(root, cacheDir))

	gi := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(gi, []byte("build/\n*.md\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(gi, future, future))

	s := open(t, options(root, cacheDir))
	assert.False(t, s.FromCache())
	_, ok := s.Tree().Find("README.md")
	assert.False(t, ok)
}

func TestSelectionPersists(t *testing.T) {
	root := writeProject(t)
	cacheDir := t.TempDir()
	s := open(t, options(root, cacheDir))

	id, ok := s.Tree().Find("pkg")
	require.True(t, ok)
	s.Tree().Toggle(id)
	require.NoError(t, s.CountAll(context.Background()))
	set, err := s.Finish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"logo.png", "main.go", "README.md"}, set.Paths())

	again := open(t, options(root, cacheDir))
	require.True(t, again.FromCache())
	assert.Equal(t, []string{"logo.png", "main.go", "README.md"}, again.Tree().SelectedPaths())
	id, _ = again.Tree().Find("pkg")
	assert.Equal(t, tree.Unselected, again.Tree().Node(id).Selection)
}

func TestCountAllAndSelectionSet(t *testing.T) {
	root := writeProject(t)
	s := open(t, options(root, t.TempDir()))
	require.NoError(t, s.CountAll(context.Background()))

	set := s.Selection()
	require.Len(t, set.Files, 4)
	byPath := map[string]SelectedFile{}
	for _, f := range set.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, 4, byPath["main.go"].Tokens)
	assert.Equal(t, 0, byPath["logo.png"].Tokens)
	assert.Equal(t, "go", byPath["pkg/util.go"].Extension)
	assert.Equal(t, s.Tree().SelectedTokens(), set.TotalTokens)
	assert.Equal(t, set.TotalTokens, set.TokenMap.Total)
	assert.Contains(t, set.Tree, "util.go")

	data, err := byPath["main.go"].Load()
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	var binary bool
	for _, w := range s.Warnings() {
		if w.Path == "logo.png" && w.Reason == scan.ReasonBinary {
			binary = true
		}
	}
	assert.True(t, binary)
}

func TestVisibleFilesCountFirst(t *testing.T) {
	root := writeProject(t)
	s := open(t, options(root, t.TempDir()))
	id, ok := s.Tree().Find("pkg/util.go")
	require.True(t, ok)

	jobs := s.countJobs([]tree.ID{id, id}, s.Tree().MatchedFiles())
	require.Len(t, jobs, 4)
	assert.Equal(t, "pkg/util.go", jobs[0].rel)
}

func TestFinishRecountsDroppedResults(t *testing.T) {
	root := t.TempDir()
	for i := range 150 {
		p := filepath.Join(root, "src", fmt.Sprintf("f%03d.go", i))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("package src\n\nvar V%d = %d\n", i, i)), 0o644))
	}
	s := open(t, options(root, t.TempDir()))

	// A receiver that quits mid-count takes results it never applies.
	ch := s.StartCounting(context.Background(), nil)
	for range 70 {
		<-ch
	}

	set, err := s.Finish(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, set.Files, 150)
	for _, f := range set.Files {
		assert.Positive(t, f.Tokens, f.Path)
	}
	for _, id := range s.Tree().SelectedFiles() {
		assert.True(t, s.Tree().Node(id).Counted)
	}
	assert.Equal(t, s.Tree().SelectedTokens(), set.TotalTokens)
}

func TestCancelledCountingCloses(t *testing.T) {
	root := writeProject(t)
	s := open(t, options(root, t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := s.StartCounting(ctx, nil)
	for range ch {
	}
	_, err := s.Finish(ctx, s.StartCounting(ctx, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRejectsFile(t *testing.T) {
	root := writeProject(t)
	_, err := Open(context.Background(), options(filepath.Join(root, "main.go"), t.TempDir()), nil)
	assert.ErrorIs(t, err, scan.ErrNotDirectory)
}
