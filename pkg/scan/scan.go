// Package scan walks a project directory with a bounded worker pool and
// records metadata for every entry that survives the pattern matcher.
// File contents are never read here.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// Kind classifies a filesystem entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlinkFile
	KindSymlinkDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlinkFile:
		return "symlink-file"
	case KindSymlinkDir:
		return "symlink-dir"
	}
	return "unknown"
}

// IsDir reports whether entries of this kind can have children.
func (k Kind) IsDir() bool { return k == KindDir || k == KindSymlinkDir }

// Entry is one scanned filesystem entry.
type Entry struct {
	RelPath string `json:"path"`
	Kind    Kind   `json:"kind"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
}

// Matcher decides which paths the scan keeps. Satisfied by *pattern.Matcher.
type Matcher interface {
	Match(relPath string, isDir bool) bool
}

// IgnoreLoader receives every directory before its entries are matched,
// so per-directory ignore files are in effect. Satisfied by *ignore.Set.
type IgnoreLoader interface {
	AddDir(relDir string)
}

// Policy controls what the scanner visits.
type Policy struct {
	Hidden         bool
	FollowSymlinks bool
	Matcher        Matcher
	Ignore         IgnoreLoader
	Workers        int
	// OnWarning, when set, is called as each warning is recorded.
	OnWarning func(Warning)
}

// Result is the outcome of a scan. Entries are sorted by RelPath.
type Result struct {
	Root     string
	Entries  []Entry
	Warnings []Warning
	Summary  Summary
	Elapsed  time.Duration
}

type dirItem struct {
	rel   string
	abs   string
	chain []fileID
}

// Scanner walks directory trees.
type Scanner struct {
	policy Policy
	logger *zap.Logger
}

// New returns a Scanner for policy.
func New(policy Policy, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Workers <= 0 {
		policy.Workers = runtime.NumCPU()
		logger.Debug("Adjusted worker count", zap.Int("workers", policy.Workers))
	}
	return &Scanner{policy: policy, logger: logger}
}

type collector struct {
	mu       sync.Mutex
	entries  []Entry
	warnings []Warning
	onWarn   func(Warning)
}

func (c *collector) add(e Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

func (c *collector) warn(w Warning) {
	c.mu.Lock()
	c.warnings = append(c.warnings, w)
	if c.onWarn != nil {
		c.onWarn(w)
	}
	c.mu.Unlock()
}

// Scan walks root. A cancelled context stops the walk after the directory
// reads already in flight and returns ctx.Err().
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absRoot, ErrNotDirectory)
	}
	rootID, _ := identity(absRoot, info)

	col := &collector{onWarn: s.policy.OnWarning}
	queue := newFrontier()
	queue.push(dirItem{rel: "", abs: absRoot, chain: []fileID{rootID}})

	s.logger.Debug("Initializing scan worker pool",
		zap.String("root", absRoot),
		zap.Int("workers", s.policy.Workers))

	var wg sync.WaitGroup
	for w := 0; w < s.policy.Workers; w++ {
		wg.Add(1)
		workerLogger := s.logger.With(zap.Int("workerID", w))
		go func() {
			defer wg.Done()
			s.worker(ctx, queue, col, workerLogger)
		}()
	}

	stop := context.AfterFunc(ctx, queue.close)
	wg.Wait()
	stop()

	if err := ctx.Err(); err != nil {
		s.logger.Debug("Scan cancelled", zap.String("root", absRoot), zap.Error(err))
		return nil, err
	}

	sort.Slice(col.entries, func(i, j int) bool { return col.entries[i].RelPath < col.entries[j].RelPath })
	res := &Result{
		Root:     absRoot,
		Entries:  col.entries,
		Warnings: col.warnings,
		Summary:  summarize(info.ModTime().UnixNano(), col.entries),
		Elapsed:  time.Since(start),
	}
	s.logger.Debug("Scan complete",
		zap.String("root", absRoot),
		zap.Int("entries", len(res.Entries)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (s *Scanner) worker(ctx context.Context, queue *frontier, col *collector, logger *zap.Logger) {
	for {
		item, ok := queue.pop()
		if !ok {
			return
		}
		if ctx.Err() == nil {
			s.readDir(item, queue, col, logger)
		}
		queue.done()
	}
}

func (s *Scanner) readDir(item dirItem, queue *frontier, col *collector, logger *zap.Logger) {
	if s.policy.Ignore != nil {
		s.policy.Ignore.AddDir(item.rel)
	}

	dirEntries, err := os.ReadDir(item.abs)
	if err != nil {
		logger.Warn("Failed to read directory", zap.String("dir", item.abs), zap.Error(err))
		col.warn(Warning{Path: item.rel, Reason: ReasonUnreadable, Err: err})
		if len(dirEntries) == 0 {
			return
		}
	}

	for _, de := range dirEntries {
		name := de.Name()
		if !s.policy.Hidden && strings.HasPrefix(name, ".") {
			continue
		}
		rel := name
		if item.rel != "" {
			rel = item.rel + "/" + name
		}
		abs := filepath.Join(item.abs, name)

		info, err := de.Info()
		if err != nil {
			col.warn(Warning{Path: rel, Reason: ReasonUnreadable, Err: err})
			continue
		}

		kind := KindFile
		target := info
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err = os.Stat(abs)
			if err != nil {
				col.warn(Warning{Path: rel, Reason: ReasonBrokenSymlink, Err: err})
				continue
			}
			kind = KindSymlinkFile
			if target.IsDir() {
				kind = KindSymlinkDir
			}
		case info.IsDir():
			kind = KindDir
		case !info.Mode().IsRegular():
			// Sockets, devices and pipes carry no prompt content.
			continue
		}

		if s.policy.Matcher != nil && !s.policy.Matcher.Match(rel, kind.IsDir()) {
			if kind.IsDir() {
				logger.Debug("Pruned directory", zap.String("dir", rel))
			}
			continue
		}

		entry := Entry{RelPath: rel, Kind: kind, ModTime: info.ModTime().UnixNano()}
		if !kind.IsDir() {
			entry.Size = target.Size()
		}

		if kind == KindSymlinkDir && !s.policy.FollowSymlinks {
			col.add(entry)
			continue
		}
		if kind.IsDir() {
			id, ok := identity(abs, target)
			if ok && inChain(item.chain, id) {
				logger.Warn("Symlink cycle detected", zap.String("path", rel))
				col.warn(Warning{Path: rel, Reason: ReasonSymlinkCycle})
				col.add(entry)
				continue
			}
			chain := make([]fileID, len(item.chain), len(item.chain)+1)
			copy(chain, item.chain)
			queue.push(dirItem{rel: rel, abs: abs, chain: append(chain, id)})
		}
		col.add(entry)
	}
}

func inChain(chain []fileID, id fileID) bool {
	for _, c := range chain {
		if c == id {
			return true
		}
	}
	return false
}
