package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/content"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/tokenmap"
)

// SelectedFile is one file of the final selection. Load reads its
// content lazily.
type SelectedFile struct {
	Path      string
	AbsPath   string
	Extension string
	Tokens    int
	Load      func() ([]byte, error)
}

// SelectionSet is the confirmed selection in display order.
type SelectionSet struct {
	Root        string
	Files       []SelectedFile
	TotalTokens int
	Tree        string
	TokenMap    tokenmap.Map
	Warnings    []scan.Warning
	Tokenizer   string
}

// Paths returns the relative paths of the selection.
func (s SelectionSet) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}

// Finish waits for outstanding counts on ch, bounded by ctx, and builds
// the SelectionSet. A nil ch means counting already completed. Selected
// files whose results never reached the tree are counted again before
// the set is built. The selection is saved for the next run.
func (s *Session) Finish(ctx context.Context, ch <-chan Counted) (SelectionSet, error) {
	if ch != nil {
		if err := s.Drain(ctx, ch); err != nil {
			s.logger.Warn("Token counting incomplete", zap.Error(err))
			return SelectionSet{}, err
		}
	}
	if err := s.countSelected(ctx); err != nil {
		s.logger.Warn("Token counting incomplete", zap.Error(err))
		return SelectionSet{}, err
	}
	set := s.Selection()
	if err := s.Save(); err != nil {
		s.logger.Debug("Selection not persisted", zap.Error(err))
	}
	return set, nil
}

// Selection snapshots the current selection.
func (s *Session) Selection() SelectionSet {
	t := s.tree
	ids := t.SelectedFiles()
	set := SelectionSet{
		Root:      s.root,
		Files:     make([]SelectedFile, 0, len(ids)),
		Tree:      t.RenderSelected(),
		Warnings:  s.warnings,
		Tokenizer: s.TokenizerID(),
	}
	rows := make([]tokenmap.FileTokens, 0, len(ids))
	for _, id := range ids {
		n := t.Node(id)
		abs := s.Abs(n.RelPath)
		set.Files = append(set.Files, SelectedFile{
			Path:      n.RelPath,
			AbsPath:   abs,
			Extension: n.Extension(),
			Tokens:    n.Tokens,
			Load:      func() ([]byte, error) { return content.Load(abs) },
		})
		set.TotalTokens += n.Tokens
		rows = append(rows, tokenmap.FileTokens{Path: n.RelPath, Tokens: n.Tokens})
	}
	set.TokenMap = tokenmap.Build(rows, s.opts.TokenMapOptions())
	return set
}
