package session

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drengskapur/codepick/pkg/content"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/tree"
)

// Counted is the result of counting one file.
type Counted struct {
	ID     tree.ID
	Path   string
	Tokens int
	Err    error
}

type countJob struct {
	id      tree.ID
	rel     string
	abs     string
	modTime int64
	size    int64
}

// StartCounting counts every matched file that has no count yet, in the
// background. Files in first are scheduled ahead of the rest. Results
// arrive on the returned channel, which is closed when all jobs finish
// or ctx is cancelled. The tree is only read here, on the caller's
// goroutine; applying results is left to the receiver.
func (s *Session) StartCounting(ctx context.Context, first []tree.ID) <-chan Counted {
	return s.count(ctx, s.countJobs(first, s.tree.MatchedFiles()))
}

func (s *Session) count(ctx context.Context, jobs []countJob) <-chan Counted {
	out := make(chan Counted, 64)

	logger := s.logger.With(zap.String("tokenizer", s.TokenizerID()))
	logger.Debug("Starting token counting", zap.Int("files", len(jobs)), zap.Int("workers", s.opts.Workers))

	go func() {
		defer close(out)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for _, j := range jobs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				n, err := s.counter.CountFile(gctx, j.abs, j.modTime, j.size, func() ([]byte, error) {
					return content.Load(j.abs)
				})
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				select {
				case out <- Counted{ID: j.id, Path: j.rel, Tokens: n, Err: err}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		if err := g.Wait(); err != nil {
			logger.Debug("Token counting stopped", zap.Error(err))
			return
		}
		logger.Debug("Token counting finished")
	}()
	return out
}

// countJobs lists uncounted matched files from first, then from rest.
func (s *Session) countJobs(first, rest []tree.ID) []countJob {
	t := s.tree
	seen := make(map[tree.ID]bool, t.MatchedCount())
	jobs := make([]countJob, 0, t.MatchedCount())
	add := func(id tree.ID) {
		n := t.Node(id)
		if seen[id] || !n.IsFile() || !n.Matched || n.Counted {
			return
		}
		seen[id] = true
		jobs = append(jobs, countJob{id: id, rel: n.RelPath, abs: s.Abs(n.RelPath), modTime: n.ModTime, size: n.Size})
	}
	for _, id := range first {
		add(id)
	}
	for _, id := range rest {
		add(id)
	}
	return jobs
}

// Apply records a result in the tree. Files without prompt content count
// as zero tokens and produce a warning.
func (s *Session) Apply(c Counted) {
	if c.Err != nil {
		reason := content.Reason(c.Err)
		if !content.Skippable(c.Err) {
			s.logger.Warn("Failed to count tokens", zap.String("path", c.Path), zap.Error(c.Err))
		}
		s.AddWarning(scan.Warning{Path: c.Path, Reason: reason, Err: c.Err})
		s.tree.SetTokens(c.ID, 0)
		return
	}
	s.tree.SetTokens(c.ID, c.Tokens)
}

// Drain applies every remaining result until ch closes or ctx ends.
func (s *Session) Drain(ctx context.Context, ch <-chan Counted) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			s.Apply(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// countSelected counts selected files still missing a count. Results
// taken off a counting channel by a receiver that stopped before
// applying them leave such gaps; the counter's memo makes refilling cheap.
func (s *Session) countSelected(ctx context.Context) error {
	jobs := s.countJobs(nil, s.tree.SelectedFiles())
	if len(jobs) == 0 {
		return nil
	}
	s.logger.Debug("Counting files missed by the picker", zap.Int("files", len(jobs)))
	return s.Drain(ctx, s.count(ctx, jobs))
}

// CountAll counts every matched file and applies the results.
func (s *Session) CountAll(ctx context.Context) error {
	return s.Drain(ctx, s.StartCounting(ctx, nil))
}
