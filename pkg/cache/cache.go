// Package cache persists scan snapshots and selections per project so a
// repeated run on an unchanged tree skips the walk.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/scan"
)

// SchemaVersion is bumped whenever the on-disk format changes.
const SchemaVersion = 1

// ErrCorrupt covers unreadable, malformed and schema-mismatched entries.
// It is never fatal: callers treat it as a miss.
var ErrCorrupt = errors.New("cache corrupt")

// RuleSet is every option that changes what a scan produces.
type RuleSet struct {
	Include           []string `json:"include"`
	Exclude           []string `json:"exclude"`
	ConfigExclude     []string `json:"configExclude"`
	Extensions        []string `json:"extensions"`
	IncludePriority   bool     `json:"includePriority"`
	Hidden            bool     `json:"hidden"`
	FollowSymlinks    bool     `json:"followSymlinks"`
	NoIgnore          bool     `json:"noIgnore"`
	NoDefaultExcludes bool     `json:"noDefaultExcludes"`
}

// Fingerprint identifies a project state.
type Fingerprint struct {
	Root string
	Sum  string
}

// Compute hashes the canonical root, the rule set and the disk summary.
// Lists are sorted first so flag order does not matter.
func Compute(root string, rules RuleSet, summary scan.Summary) Fingerprint {
	canon := canonicalRoot(root)
	norm := rules
	for _, list := range []*[]string{&norm.Include, &norm.Exclude, &norm.ConfigExclude, &norm.Extensions} {
		*list = slices.Clone(*list)
		sort.Strings(*list)
	}
	h := sha256.New()
	fmt.Fprintf(h, "v%d\x00%s\x00", SchemaVersion, canon)
	rulesJSON, _ := json.Marshal(norm)
	h.Write(rulesJSON)
	fmt.Fprintf(h, "\x00%d\x00%d\x00%d", summary.Entries, summary.MaxModTime, summary.ModSum)
	return Fingerprint{Root: canon, Sum: hex.EncodeToString(h.Sum(nil))}
}

// Snapshot is the stored scan result.
type Snapshot struct {
	Entries []scan.Entry `json:"entries"`
	Watch   []string     `json:"watch,omitempty"`
	Summary scan.Summary `json:"summary"`
}

// Entry is one project's cache file.
type Entry struct {
	Version     int       `json:"version"`
	Root        string    `json:"root"`
	Fingerprint string    `json:"fingerprint"`
	Scan        Snapshot  `json:"scan"`
	Selection   []string  `json:"selection"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Manager reads and writes cache entries under one directory.
type Manager struct {
	dir     string
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// New returns a Manager storing entries in dir. A disabled Manager misses
// on every Load and ignores Store and Invalidate.
func New(dir string, enabled bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dir: dir, enabled: enabled, logger: logger, now: time.Now}
}

// DefaultDir is the per-user cache directory for the tool.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user cache dir: %w", err)
	}
	return filepath.Join(base, "codepick"), nil
}

// Dir returns the storage directory.
func (m *Manager) Dir() string { return m.dir }

// Enabled reports whether the cache is read and written.
func (m *Manager) Enabled() bool { return m.enabled }

// Path is the cache file for a project root.
func (m *Manager) Path(root string) string {
	sum := sha256.Sum256([]byte(canonicalRoot(root)))
	return filepath.Join(m.dir, "selection_"+hex.EncodeToString(sum[:16])+".json")
}

// Load returns the entry for fp.Root when its stored fingerprint equals
// fp.Sum. Any mismatch or read problem is a miss.
func (m *Manager) Load(fp Fingerprint) (*Entry, bool) {
	if !m.enabled {
		return nil, false
	}
	e, err := m.read(fp.Root)
	if err != nil {
		m.logMiss(fp.Root, err)
		return nil, false
	}
	if e.Fingerprint != fp.Sum {
		m.logger.Debug("Cache fingerprint mismatch", zap.String("root", fp.Root))
		return nil, false
	}
	return e, true
}

// Lookup revalidates the stored entry for root against the current disk
// state by re-statting its recorded entries, without listing directories.
// It returns the fingerprint it computed so a hit can be updated later.
func (m *Manager) Lookup(root string, rules RuleSet) (*Entry, Fingerprint, bool) {
	if !m.enabled {
		return nil, Fingerprint{}, false
	}
	canon := canonicalRoot(root)
	e, err := m.read(canon)
	if err != nil {
		m.logMiss(canon, err)
		return nil, Fingerprint{}, false
	}
	summary, err := scan.Restat(canon, e.Scan.Entries, e.Scan.Watch)
	if err != nil {
		m.logger.Debug("Cached snapshot is stale", zap.String("root", canon), zap.Error(err))
		return nil, Fingerprint{}, false
	}
	fp := Compute(canon, rules, summary)
	if e.Fingerprint != fp.Sum {
		m.logger.Debug("Cache fingerprint mismatch", zap.String("root", canon))
		return nil, fp, false
	}
	return e, fp, true
}

// Store writes an entry for fp. Storing an identical snapshot and
// selection again leaves the file byte-identical and untouched.
func (m *Manager) Store(fp Fingerprint, snap Snapshot, selection []string) error {
	if !m.enabled {
		return nil
	}
	e := &Entry{
		Version:     SchemaVersion,
		Root:        fp.Root,
		Fingerprint: fp.Sum,
		Scan:        snap,
		Selection:   normalizeSelection(selection),
		CreatedAt:   m.now().UTC().Truncate(time.Second),
	}
	if e.Scan.Entries == nil {
		e.Scan.Entries = []scan.Entry{}
	}
	path := m.Path(fp.Root)

	existing, _ := os.ReadFile(path)
	if old, err := decode(existing, fp.Root); err == nil && old.Fingerprint == fp.Sum {
		e.CreatedAt = old.CreatedAt
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	data = append(data, '\n')
	if bytes.Equal(existing, data) {
		m.logger.Debug("Cache entry unchanged", zap.String("file", path))
		return nil
	}
	if err := withLock(path, func() error { return writeEntry(path, data) }); err != nil {
		m.logger.Warn("Failed to write cache entry", zap.String("file", path), zap.Error(err))
		return err
	}
	m.logger.Debug("Stored cache entry",
		zap.String("file", path),
		zap.Int("entries", len(snap.Entries)),
		zap.Int("selected", len(e.Selection)))
	return nil
}

// UpdateSelection replaces the selection of the entry matching fp,
// keeping its snapshot.
func (m *Manager) UpdateSelection(fp Fingerprint, selection []string) error {
	e, ok := m.Load(fp)
	if !ok {
		return nil
	}
	return m.Store(fp, e.Scan, selection)
}

// Invalidate removes the entry for fp's root.
func (m *Manager) Invalidate(fp Fingerprint) error {
	if !m.enabled {
		return nil
	}
	path := m.Path(fp.Root)
	err := withLock(path, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache entry %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Debug("Invalidated cache entry", zap.String("file", path))
	return nil
}

func (m *Manager) read(root string) (*Entry, error) {
	path := m.Path(root)
	// Without the cache directory there is no lock file to share, and
	// nothing to read either.
	lock := entryLock(path)
	if err := lock.RLock(); err == nil {
		defer lock.Unlock()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decode(data, root)
}

func decode(data []byte, root string) (*Entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrCorrupt)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrCorrupt, e.Version, SchemaVersion)
	}
	if e.Root != root {
		return nil, fmt.Errorf("%w: entry belongs to %s", ErrCorrupt, e.Root)
	}
	return &e, nil
}

func (m *Manager) logMiss(root string, err error) {
	switch {
	case os.IsNotExist(err):
		m.logger.Debug("No cache entry", zap.String("root", root))
	case errors.Is(err, ErrCorrupt):
		m.logger.Debug("Ignoring corrupt cache entry", zap.String("root", root), zap.Error(err))
	default:
		m.logger.Debug("Cache read failed", zap.String("root", root), zap.Error(err))
	}
}

func normalizeSelection(sel []string) []string {
	out := make([]string, 0, len(sel))
	for _, p := range sel {
		out = append(out, strings.Trim(filepath.ToSlash(p), "/"))
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func canonicalRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return abs
}
