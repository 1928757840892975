// Package ignore loads version-control ignore files and answers whether a
// project path is ignored under gitignore semantics.
package ignore

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// FileNames are read from every directory the scanner visits, in order.
var FileNames = []string{".gitignore", ".ignore"}

// scope holds the rules of a single directory. Patterns inside apply to
// paths relative to base.
type scope struct {
	base   string
	source string
	gi     *gitignore.GitIgnore
}

// Set is a hierarchy of ignore scopes. Deeper scopes override shallower
// ones, and within a scope the last matching line wins.
//
// Directories are added concurrently by scan workers; a directory is
// always added before any of its entries are queried.
type Set struct {
	mu     sync.RWMutex
	root   string
	scopes []scope
	loaded map[string]bool
	logger *zap.Logger
}

// NewSet returns an empty Set rooted at root.
func NewSet(root string, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop() // Use no-op logger if none is provided
	}
	return &Set{
		root:   root,
		loaded: make(map[string]bool),
		logger: logger,
	}
}

// Load builds a Set for root. It reads the repository's info/exclude file
// and the ignore files of every parent directory up to the repository top,
// so a scan started in a subdirectory honours rules defined above it.
func Load(root string, logger *zap.Logger) (*Set, error) {
	s := NewSet(root, logger)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s.root = absRoot

	var parents []string
	current := filepath.Dir(absRoot)
	for current != absRoot {
		parents = append([]string{current}, parents...) // Prepend so outer rules load first
		if isRepoTop(current) {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			parents = nil // No repository above root; outer ignore files do not apply
			break
		}
		current = parent
	}
	if isRepoTop(absRoot) {
		parents = nil
	}

	for _, dir := range parents {
		rel, err := filepath.Rel(dir, absRoot)
		if err != nil {
			continue
		}
		s.addOuter(dir, filepath.ToSlash(rel))
	}

	top := absRoot
	if len(parents) > 0 {
		top = parents[0]
	}
	if info := filepath.Join(top, ".git", "info", "exclude"); fileExists(info) {
		prefix := ""
		if top != absRoot {
			rel, err := filepath.Rel(top, absRoot)
			if err == nil {
				prefix = filepath.ToSlash(rel)
			}
		}
		s.addFile(info, prefix, "")
	}

	s.AddDir("")
	s.logger.Debug("Loaded ignore rules", zap.String("root", absRoot), zap.Int("scopes", s.Len()))
	return s, nil
}

// AddDir loads the ignore files inside relDir. Calling it twice for the
// same directory is a no-op.
func (s *Set) AddDir(relDir string) {
	relDir = clean(relDir)
	s.mu.Lock()
	if s.loaded[relDir] {
		s.mu.Unlock()
		return
	}
	s.loaded[relDir] = true
	s.mu.Unlock()

	dir := filepath.Join(s.root, filepath.FromSlash(relDir))
	for _, name := range FileNames {
		s.addFile(filepath.Join(dir, name), "", relDir)
	}
}

// addOuter registers an ignore file that lives above the root. Its
// patterns are evaluated against the path relative to that directory.
func (s *Set) addOuter(dir, relRoot string) {
	for _, name := range FileNames {
		s.addFile(filepath.Join(dir, name), relRoot, "")
	}
}

// addFile compiles one ignore file. prefix is prepended to queried paths
// before matching; base limits the scope to a subtree of the root.
func (s *Set) addFile(file, prefix, base string) {
	content, err := os.ReadFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read ignore file", zap.String("file", file), zap.Error(err))
		}
		return
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if prefix != "" {
		lines = rebase(lines, prefix)
		if len(lines) == 0 {
			return
		}
	}
	gi := gitignore.CompileIgnoreLines(lines...)

	s.mu.Lock()
	s.scopes = append(s.scopes, scope{base: base, source: file, gi: gi})
	sort.SliceStable(s.scopes, func(i, j int) bool {
		return depth(s.scopes[i].base) < depth(s.scopes[j].base)
	})
	s.mu.Unlock()
	s.logger.Debug("Compiled ignore file", zap.String("file", file), zap.Int("lineCount", len(lines)))
}

// rebase rewrites patterns from an outer directory so they can be
// evaluated against root-relative paths. Anchored patterns that point
// outside the root are dropped.
func rebase(lines []string, prefix string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		negate := strings.HasPrefix(trimmed, "!")
		body := strings.TrimPrefix(trimmed, "!")
		anchored := strings.HasPrefix(body, "/") || strings.Contains(strings.TrimSuffix(body, "/"), "/")
		if anchored {
			body = strings.TrimPrefix(body, "/")
			if !strings.HasPrefix(body, prefix+"/") {
				continue
			}
			body = "/" + strings.TrimPrefix(body, prefix+"/")
		}
		if negate {
			body = "!" + body
		}
		out = append(out, body)
	}
	return out
}

// Ignored reports whether relPath is ignored.
func (s *Set) Ignored(relPath string, isDir bool) bool {
	relPath = clean(relPath)
	if relPath == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ignored := false
	for _, sc := range s.scopes {
		p := relPath
		if sc.base != "" {
			if !strings.HasPrefix(relPath, sc.base+"/") {
				continue
			}
			p = strings.TrimPrefix(relPath, sc.base+"/")
		}
		if isDir {
			p += "/"
		}
		if matched, how := sc.gi.MatchesPathHow(p); how != nil {
			ignored = matched
		}
	}
	return ignored
}

// Len returns the number of loaded ignore files.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes)
}

// Sources lists the loaded ignore files, outermost first.
func (s *Set) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.scopes))
	for i, sc := range s.scopes {
		out[i] = sc.source
	}
	return out
}

func isRepoTop(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func clean(rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "." {
		return ""
	}
	return path.Clean("/" + rel)[1:]
}

func depth(rel string) int {
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
