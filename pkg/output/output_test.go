package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/content"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/session"
	"github.com/drengskapur/codepick/pkg/tokenmap"
)

func file(path, body string, tokens int) session.SelectedFile {
	return session.SelectedFile{
		Path:   path,
		Tokens: tokens,
		Load:   func() ([]byte, error) { return []byte(body), nil },
	}
}

func failing(path string, err error) session.SelectedFile {
	return session.SelectedFile{
		Path:   path,
		Tokens: 10,
		Load:   func() ([]byte, error) { return nil, err },
	}
}

func sampleSet() session.SelectionSet {
	files := []session.SelectedFile{
		file("main.go", "package main\n\nfunc main() {}\n", 6),
		file("docs/notes.md", "see ```go blocks```", 4),
		failing("logo.png", content.ErrBinary),
	}
	tm := tokenmap.Build([]tokenmap.FileTokens{
		{Path: "main.go", Tokens: 6},
		{Path: "docs/notes.md", Tokens: 4},
	}, tokenmap.Options{})
	return session.SelectionSet{
		Root:        "/work/demo",
		Files:       files,
		TotalTokens: 20,
		Tree:        "demo/\n├── docs\n│   └── notes.md\n├── logo.png\n└── main.go\n",
		TokenMap:    tm,
		Tokenizer:   "simple",
	}
}

func TestRenderMarkdown(t *testing.T) {
	doc, err := Render(sampleSet(), Options{Format: config.FormatMarkdown}, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc.Prompt, "Project Path: /work/demo\n\nSource Tree:\n\n```\ndemo/\n├── docs\n"))
	assert.Equal(t, 1, strings.Count(doc.Prompt, "demo/\n"), "root line appears once")
	assert.Contains(t, doc.Prompt, "`main.go`:\n\n```go\npackage main\n\nfunc main() {}\n```\n")
	assert.Contains(t, doc.Prompt, "````md\nsee ```go blocks```\n````", "fence outgrows inner backticks")
	assert.NotContains(t, doc.Prompt, "logo.png`:")

	assert.Equal(t, 10, doc.Tokens, "skipped files do not count")
	require.Len(t, doc.Skipped, 1)
	assert.Equal(t, scan.ReasonBinary, doc.Skipped[0].Reason)
	assert.Equal(t, "logo.png", doc.Skipped[0].Path)
}

func TestRenderLineNumbersAndNoCodeblock(t *testing.T) {
	doc, err := Render(sampleSet(), Options{LineNumbers: true, NoCodeblock: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, doc.Prompt, "   1 | package main\n   2 | \n   3 | func main() {}\n")
	assert.NotContains(t, doc.Prompt, "```go\n")
}

func TestRenderUnreadableIsSkipped(t *testing.T) {
	set := sampleSet()
	set.Files = append(set.Files, failing("gone.txt", os.ErrNotExist))
	doc, err := Render(set, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, doc.Skipped, 2)
	assert.Equal(t, scan.ReasonUnreadable, doc.Skipped[1].Reason)
}

func TestRenderJSON(t *testing.T) {
	doc, err := Render(sampleSet(), Options{Format: config.FormatJSON}, nil)
	require.NoError(t, err)

	var got jsonDoc
	require.NoError(t, json.Unmarshal([]byte(doc.Prompt), &got))
	assert.Equal(t, "demo", got.DirectoryName)
	assert.Equal(t, 10, got.TokenCount)
	assert.Equal(t, "simple", got.Tokenizer)
	assert.Equal(t, []string{"main.go", "docs/notes.md"}, got.Files)
	assert.Contains(t, got.Prompt, "`main.go`:")
}

func TestRenderXML(t *testing.T) {
	doc, err := Render(sampleSet(), Options{Format: config.FormatXML}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Prompt, xml.Header))

	var got xmlDoc
	require.NoError(t, xml.Unmarshal([]byte(doc.Prompt), &got))
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, 10, got.TokenCount)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "main.go", got.Files[0].Path)
	assert.Equal(t, 6, got.Files[0].Tokens)
	assert.Contains(t, got.Files[0].Content, "func main() {}")
	assert.Contains(t, got.SourceTree, "notes.md")
}

func stubClipboard(t *testing.T, err error) *string {
	t.Helper()
	var copied string
	prev := copyToClipboard
	copyToClipboard = func(s string) error {
		if err != nil {
			return err
		}
		copied = s
		return nil
	}
	t.Cleanup(func() { copyToClipboard = prev })
	return &copied
}

func TestDeliverStdout(t *testing.T) {
	doc := &Document{Prompt: "hello\n"}
	var out bytes.Buffer
	require.NoError(t, Deliver(doc, Destination{Stdout: &out}, nil))
	assert.Equal(t, "hello\n", out.String())
}

func TestDeliverFile(t *testing.T) {
	doc := &Document{Prompt: "hello\n"}
	path := filepath.Join(t.TempDir(), "nested", "prompt.md")
	var out bytes.Buffer
	require.NoError(t, Deliver(doc, Destination{Stdout: &out, File: path}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Empty(t, out.String(), "a file destination keeps stdout clean")
}

func TestDeliverClipboard(t *testing.T) {
	copied := stubClipboard(t, nil)
	doc := &Document{Prompt: "hello\n"}
	var out bytes.Buffer
	require.NoError(t, Deliver(doc, Destination{Stdout: &out, Clipboard: true}, nil))
	assert.Equal(t, "hello\n", *copied)
	assert.Empty(t, out.String())
}

func TestDeliverClipboardFailure(t *testing.T) {
	stubClipboard(t, errors.New("no display"))
	doc := &Document{Prompt: "hello\n"}

	var out bytes.Buffer
	require.NoError(t, Deliver(doc, Destination{Stdout: &out, Clipboard: true}, nil))
	assert.Equal(t, "hello\n", out.String(), "falls back to stdout")

	path := filepath.Join(t.TempDir(), "prompt.md")
	err := Deliver(doc, Destination{Stdout: &out, File: path, Clipboard: true}, nil)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "file is written before the clipboard")
}

func TestPrintSummary(t *testing.T) {
	set := sampleSet()
	set.Warnings = []scan.Warning{{Path: "secret", Reason: scan.ReasonUnreadable}}
	doc, err := Render(set, Options{}, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	PrintSummary(&out, set, doc, SummaryOptions{})
	s := out.String()
	assert.Contains(t, s, "[i] Files: 2\n")
	assert.Contains(t, s, "[i] Total Prompt Token count: 10 (simple)\n")
	assert.NotContains(t, s, "File Token Map")
	assert.Contains(t, s, "[!] 2 file(s) skipped\n")
	assert.Contains(t, s, "secret: unreadable")
	assert.Contains(t, s, "logo.png: binary content")
	assert.NotContains(t, s, "\x1b[", "color off")

	out.Reset()
	PrintSummary(&out, set, doc, SummaryOptions{TokenMap: true})
	assert.Contains(t, out.String(), "[i] File Token Map (Sum of file tokens: 10):\n")
	assert.Contains(t, out.String(), "main.go")
}

func TestPrintSummaryColor(t *testing.T) {
	var out bytes.Buffer
	PrintSummary(&out, sampleSet(), nil, SummaryOptions{Color: true})
	assert.Contains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "Total Prompt Token count: ")
}
