// Package output renders a confirmed selection as a prompt and delivers it
// to stdout, a file, or the clipboard.
package output

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/content"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/session"
)

// Options controls rendering.
type Options struct {
	Format      config.OutputFormat
	LineNumbers bool
	NoCodeblock bool
}

// FileContent is one rendered file.
type FileContent struct {
	Path    string
	Tokens  int
	Content string
}

// Document is a rendered selection.
type Document struct {
	Root      string
	Tree      string
	Files     []FileContent
	Skipped   []scan.Warning
	Tokens    int
	Tokenizer string
	Prompt    string
	Format    config.OutputFormat
}

// Render loads every selected file and formats the prompt. Files without
// prompt content are skipped and reported in Skipped.
func Render(set session.SelectionSet, opts Options, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc := &Document{
		Root:      set.Root,
		Tree:      set.Tree,
		Tokenizer: set.Tokenizer,
		Format:    opts.Format,
	}
	for _, f := range set.Files {
		data, err := f.Load()
		if err != nil {
			if !content.Skippable(err) {
				logger.Warn("Failed to read selected file", zap.String("path", f.Path), zap.Error(err))
			}
			doc.Skipped = append(doc.Skipped, scan.Warning{Path: f.Path, Reason: content.Reason(err), Err: err})
			continue
		}
		logger.Debug("Rendered file", zap.String("path", f.Path), zap.Int("contentSizeBytes", len(data)))
		doc.Files = append(doc.Files, FileContent{Path: f.Path, Tokens: f.Tokens, Content: string(data)})
		doc.Tokens += f.Tokens
	}

	var err error
	switch opts.Format {
	case config.FormatJSON:
		doc.Prompt, err = renderJSON(doc, renderMarkdown(doc, opts))
	case config.FormatXML:
		doc.Prompt, err = renderXML(doc, opts)
	default:
		doc.Prompt = renderMarkdown(doc, opts)
	}
	if err != nil {
		logger.Error("Failed to render prompt", zap.String("format", string(opts.Format)), zap.Error(err))
		return nil, fmt.Errorf("failed to render %s output: %w", opts.Format, err)
	}
	return doc, nil
}

func numbered(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, l)
	}
	return b.String()
}

func body(f FileContent, opts Options) string {
	c := f.Content
	if opts.LineNumbers {
		c = numbered(c)
	}
	if !strings.HasSuffix(c, "\n") {
		c += "\n"
	}
	return c
}

// fence picks a backtick run longer than any inside the content.
func fence(c string) string {
	longest, run := 0, 0
	for _, r := range c {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func renderMarkdown(doc *Document, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project Path: %s\n\n", doc.Root)
	fmt.Fprintf(&b, "Source Tree:\n\n```\n%s```\n\n", doc.Tree)
	for _, f := range doc.Files {
		c := body(f, opts)
		fmt.Fprintf(&b, "`%s`:\n\n", f.Path)
		if opts.NoCodeblock {
			b.WriteString(c)
			b.WriteString("\n")
			continue
		}
		fc := fence(c)
		lang := strings.TrimPrefix(filepath.Ext(f.Path), ".")
		fmt.Fprintf(&b, "%s%s\n%s%s\n\n", fc, lang, c, fc)
	}
	return b.String()
}

type jsonDoc struct {
	Prompt        string   `json:"prompt"`
	DirectoryName string   `json:"directory_name"`
	TokenCount    int      `json:"token_count"`
	Tokenizer     string   `json:"model_info"`
	Files         []string `json:"files"`
}

func renderJSON(doc *Document, prompt string) (string, error) {
	out := jsonDoc{
		Prompt:        prompt,
		DirectoryName: filepath.Base(doc.Root),
		TokenCount:    doc.Tokens,
		Tokenizer:     doc.Tokenizer,
		Files:         make([]string, 0, len(doc.Files)),
	}
	for _, f := range doc.Files {
		out.Files = append(out.Files, f.Path)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

type xmlFile struct {
	Path    string `xml:"path,attr"`
	Tokens  int    `xml:"tokens,attr"`
	Content string `xml:",cdata"`
}

type xmlDoc struct {
	XMLName    xml.Name  `xml:"directory"`
	Name       string    `xml:"name,attr"`
	Path       string    `xml:"path,attr"`
	TokenCount int       `xml:"token_count,attr"`
	SourceTree string    `xml:"source_tree"`
	Files      []xmlFile `xml:"files>file"`
}

func renderXML(doc *Document, opts Options) (string, error) {
	out := xmlDoc{
		Name:       filepath.Base(doc.Root),
		Path:       doc.Root,
		TokenCount: doc.Tokens,
		SourceTree: "\n" + doc.Tree,
	}
	for _, f := range doc.Files {
		out.Files = append(out.Files, xmlFile{Path: f.Path, Tokens: f.Tokens, Content: "\n" + body(f, opts)})
	}
	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(data) + "\n", nil
}

// WriteTo writes the prompt through a buffered writer.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	n, err := bw.WriteString(d.Prompt)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write prompt: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return int64(n), fmt.Errorf("failed to flush output: %w", err)
	}
	return int64(n), nil
}
