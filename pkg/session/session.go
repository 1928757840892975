// Package session loads a project into a selection tree, from the cache
// when the tree on disk is unchanged, and turns the final selection into
// a SelectionSet.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/cache"
	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/ignore"
	"github.com/drengskapur/codepick/pkg/pattern"
	"github.com/drengskapur/codepick/pkg/scan"
	"github.com/drengskapur/codepick/pkg/token"
	"github.com/drengskapur/codepick/pkg/tree"
)

// TokenDBName is the token memo database inside the cache directory.
const TokenDBName = "tokens.db"

// TokenRetention is how long a stored count survives without being
// refreshed by a run.
const TokenRetention = 30 * 24 * time.Hour

// Session is one loaded project. Its tree must only be touched from one
// goroutine at a time.
type Session struct {
	opts    config.Options
	logger  *zap.Logger
	root    string
	tree    *tree.Tree
	matcher *pattern.Matcher
	cache   *cache.Manager
	fp      cache.Fingerprint
	counter *token.Counter

	fromCache bool
	warnings  []scan.Warning
	elapsed   time.Duration
}

// Open resolves opts.Path, loads ignore rules, and either restores the
// cached snapshot and selection or scans the tree. A fresh scan starts
// with every matched file selected.
func Open(ctx context.Context, opts config.Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	root, err := resolveRoot(opts.Path)
	if err != nil {
		logger.Error("Failed to resolve project root", zap.String("path", opts.Path), zap.Error(err))
		return nil, err
	}

	var ignores *ignore.Set
	var ignorer pattern.Ignorer
	if !opts.NoIgnore {
		ignores, err = ignore.Load(root, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore rules: %w", err)
		}
		ignorer = ignores
	}
	matcher, err := pattern.New(opts.PatternOptions(), ignorer, logger)
	if err != nil {
		return nil, err
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		if cacheDir, err = cache.DefaultDir(); err != nil {
			logger.Warn("Cache disabled", zap.Error(err))
			opts.UseCache = false
		}
	}
	s := &Session{
		opts:    opts,
		logger:  logger,
		root:    root,
		matcher: matcher,
		cache:   cache.New(cacheDir, opts.UseCache, logger),
	}

	if err := s.load(ctx, ignores); err != nil {
		return nil, err
	}
	s.tree.Sort(opts.Sort)
	s.tree.ExpandToDepth(1)

	if s.counter, err = s.newCounter(ctx); err != nil {
		return nil, err
	}
	s.elapsed = time.Since(start)
	logger.Info("Project loaded",
		zap.String("root", root),
		zap.Bool("fromCache", s.fromCache),
		zap.Int("matched", s.tree.MatchedCount()),
		zap.Int("selected", s.tree.SelectedCount()),
		zap.Duration("elapsed", s.elapsed))
	return s, nil
}

func resolveRoot(p string) (string, error) {
	if p == "" {
		p = "."
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, scan.ErrNotDirectory)
	}
	return abs, nil
}

func (s *Session) load(ctx context.Context, ignores *ignore.Set) error {
	rules := s.opts.RuleSet()
	if !s.opts.Rescan {
		if e, fp, ok := s.cache.Lookup(s.root, rules); ok {
			s.fp = fp
			s.fromCache = true
			// Snapshot entries already passed the matcher when they were scanned.
			s.tree = tree.Build(filepath.Base(s.root), e.Scan.Entries, nil)
			if missing := s.tree.ApplySelection(e.Selection); len(missing) > 0 {
				s.logger.Debug("Dropped stale cached selection", zap.Strings("paths", missing))
			}
			return nil
		}
	}

	policy := scan.Policy{
		Hidden:         s.opts.Hidden,
		FollowSymlinks: s.opts.FollowSymlinks,
		Matcher:        s.matcher,
		Workers:        s.opts.Workers,
	}
	if ignores != nil {
		policy.Ignore = ignores
	}
	res, err := scan.New(policy, s.logger).Scan(ctx, s.root)
	if err != nil {
		s.logger.Error("Scan failed", zap.String("root", s.root), zap.Error(err))
		return err
	}
	s.warnings = append(s.warnings, res.Warnings...)
	s.tree = tree.Build(filepath.Base(s.root), res.Entries, s.matcher)
	s.tree.SelectAll(nil)

	var watch []string
	if ignores != nil {
		watch = ignores.Sources()
		sort.Strings(watch)
	}
	summary, err := scan.WithExtra(res.Summary, watch)
	if err != nil {
		s.logger.Debug("Ignore file vanished during scan", zap.Error(err))
		return nil
	}
	s.fp = cache.Compute(s.root, rules, summary)
	snap := cache.Snapshot{Entries: res.Entries, Watch: watch, Summary: res.Summary}
	if err := s.cache.Store(s.fp, snap, s.tree.SelectedPaths()); err != nil {
		s.logger.Warn("Failed to store scan in cache", zap.Error(err))
	}
	return nil
}

func (s *Session) newCounter(ctx context.Context) (*token.Counter, error) {
	tok, err := token.New(s.opts.Tokenizer)
	if err != nil {
		return nil, err
	}
	if l, ok := tok.(token.Loader); ok {
		if err := l.Load(); err != nil {
			s.logger.Warn("Tokenizer tables unavailable, estimating", zap.String("tokenizer", tok.ID()), zap.Error(err))
		}
	}
	var store token.Store
	if s.cache.Enabled() {
		if err := os.MkdirAll(s.cache.Dir(), 0o755); err == nil {
			st, err := token.OpenStore(filepath.Join(s.cache.Dir(), TokenDBName))
			if err != nil {
				s.logger.Warn("Token store unavailable", zap.Error(err))
			} else {
				store = st
				if n, err := st.Prune(ctx, time.Now().Add(-TokenRetention)); err != nil {
					s.logger.Debug("Token store not pruned", zap.Error(err))
				} else if n > 0 {
					s.logger.Debug("Pruned stale token counts", zap.Int64("rows", n))
				}
			}
		}
	}
	return token.NewCounter(tok, store, s.logger), nil
}

// Root is the canonical project directory.
func (s *Session) Root() string { return s.root }

// Tree is the selection model.
func (s *Session) Tree() *tree.Tree { return s.tree }

// Options returns the options the session was opened with, after
// validation and cache fallbacks.
func (s *Session) Options() config.Options { return s.opts }

// FromCache reports whether the tree came from a cache hit.
func (s *Session) FromCache() bool { return s.fromCache }

// Cache is the session's cache manager.
func (s *Session) Cache() *cache.Manager { return s.cache }

// Warnings returns scan and content warnings recorded so far.
func (s *Session) Warnings() []scan.Warning { return s.warnings }

// AddWarning records a warning found after the scan.
func (s *Session) AddWarning(w scan.Warning) { s.warnings = append(s.warnings, w) }

// TokenizerID is the canonical tokenizer in use.
func (s *Session) TokenizerID() string { return s.counter.Tokenizer().ID() }

// Abs returns the absolute path of a project-relative path.
func (s *Session) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Save records the current selection for the next run.
func (s *Session) Save() error {
	if s.fp.Sum == "" {
		return nil
	}
	if err := s.cache.UpdateSelection(s.fp, s.tree.SelectedPaths()); err != nil {
		s.logger.Warn("Failed to save selection", zap.Error(err))
		return err
	}
	return nil
}

// Close releases the token store.
func (s *Session) Close() error {
	st := s.counter.Stats()
	s.logger.Debug("Token counter stats",
		zap.Int64("memoHits", st.MemoHits),
		zap.Int64("storeHits", st.StoreHits),
		zap.Int64("computed", st.Computed))
	return s.counter.Close()
}
