// Package pattern decides which project paths take part in a selection.
//
// A Matcher evaluates, in order: version-control ignore rules, default
// excludes, user excludes, user includes and finally the extension
// allow-list. Include and exclude conflicts are settled by a single
// include-priority flag.
package pattern

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// ErrPattern is matched by every error caused by a malformed glob.
var ErrPattern = errors.New("invalid pattern")

// DefaultExcludes are applied unless disabled: VCS metadata, Windows
// binaries and common build output directories.
var DefaultExcludes = []string{
	".git/",
	".svn/",
	".hg/",
	"*.exe",
	"*.dll",
	"target/",
	"node_modules/",
}

// Polarity tells whether a rule adds or removes paths.
type Polarity int

const (
	Include Polarity = iota
	Exclude
)

func (p Polarity) String() string {
	if p == Include {
		return "include"
	}
	return "exclude"
}

// Source records where a rule came from.
type Source int

const (
	SourceCLI Source = iota
	SourceConfig
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceCLI:
		return "cli"
	case SourceConfig:
		return "config"
	default:
		return "default"
	}
}

// Rule is one include or exclude glob.
type Rule struct {
	Glob     string
	Polarity Polarity
	Source   Source
}

// Error reports a glob that doublestar cannot compile.
type Error struct {
	Rule   Rule
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %s pattern %q: %s", e.Rule.Source, e.Rule.Polarity, e.Rule.Glob, e.Reason)
}

// Unwrap lets errors.Is(err, ErrPattern) succeed.
func (e *Error) Unwrap() error { return ErrPattern }

// Ignorer answers version-control ignore queries. Paths are slash
// separated and relative to the project root.
type Ignorer interface {
	Ignored(relPath string, isDir bool) bool
}

// Options configures a Matcher.
type Options struct {
	Include           []string
	Exclude           []string
	Extensions        []string
	IncludePriority   bool
	NoIgnore          bool
	NoDefaultExcludes bool
	// ConfigExclude holds excludes read from the config file.
	ConfigExclude []string
}

// Verdict names the stage that decided a path.
type Verdict int

const (
	Matched Verdict = iota
	Ignored
	DefaultExcluded
	Excluded
	NotIncluded
	ExtensionFiltered
)

func (v Verdict) String() string {
	return [...]string{"matched", "ignored", "default-excluded", "excluded", "not-included", "extension-filtered"}[v]
}

// Decision is the outcome of evaluating one path.
type Decision struct {
	Verdict Verdict
	Rule    *Rule
}

// Matched reports whether the path takes part in the selection.
func (d Decision) Matched() bool { return d.Verdict == Matched }

type compiled struct {
	rule    Rule
	glob    string
	self    string
	dirOnly bool
}

// match also reports true when an ancestor directory of rel matches, so
// contents of a matched directory share its fate.
func (c *compiled) match(rel string, isDir bool) bool {
	if !c.dirOnly || isDir {
		if ok, _ := doublestar.Match(c.glob, rel); ok {
			return true
		}
	}
	if c.self != "" {
		if ok, _ := doublestar.Match(c.self, rel); ok {
			return true
		}
	}
	for i := len(rel) - 1; i > 0; i-- {
		if rel[i] != '/' {
			continue
		}
		if ok, _ := doublestar.Match(c.glob, rel[:i]); ok {
			return true
		}
	}
	return false
}

// Matcher is immutable once built and safe for concurrent use.
type Matcher struct {
	defaults        []*compiled
	excludes        []*compiled
	includes        []*compiled
	extensions      map[string]struct{}
	includePriority bool
	noIgnore        bool
	ignorer         Ignorer
	rules           []Rule
	logger          *zap.Logger
}

// New compiles every glob up front and fails on the first malformed one.
func New(opts Options, ignorer Ignorer, logger *zap.Logger) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Matcher{
		includePriority: opts.IncludePriority,
		noIgnore:        opts.NoIgnore,
		ignorer:         ignorer,
		logger:          logger,
	}

	add := func(dst *[]*compiled, globs []string, pol Polarity, src Source) error {
		for _, g := range globs {
			r := Rule{Glob: g, Polarity: pol, Source: src}
			c, err := compile(r)
			if err != nil {
				logger.Error("Failed to compile pattern", zap.String("glob", g), zap.Error(err))
				return err
			}
			*dst = append(*dst, c)
			m.rules = append(m.rules, r)
		}
		return nil
	}

	if !opts.NoDefaultExcludes {
		if err := add(&m.defaults, DefaultExcludes, Exclude, SourceDefault); err != nil {
			return nil, err
		}
	}
	if err := add(&m.excludes, opts.ConfigExclude, Exclude, SourceConfig); err != nil {
		return nil, err
	}
	if err := add(&m.excludes, opts.Exclude, Exclude, SourceCLI); err != nil {
		return nil, err
	}
	if err := add(&m.includes, opts.Include, Include, SourceCLI); err != nil {
		return nil, err
	}

	if len(opts.Extensions) > 0 {
		m.extensions = make(map[string]struct{}, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = NormalizeExtension(ext)
			if ext != "" {
				m.extensions[ext] = struct{}{}
			}
		}
	}

	logger.Debug("Compiled pattern matcher",
		zap.Int("defaults", len(m.defaults)),
		zap.Int("excludes", len(m.excludes)),
		zap.Int("includes", len(m.includes)),
		zap.Int("extensions", len(m.extensions)),
		zap.Bool("includePriority", m.includePriority))
	return m, nil
}

// Validate checks globs without building a Matcher.
func Validate(globs []string, pol Polarity, src Source) error {
	for _, g := range globs {
		if _, err := compile(Rule{Glob: g, Polarity: pol, Source: src}); err != nil {
			return err
		}
	}
	return nil
}

func compile(r Rule) (*compiled, error) {
	g := strings.ReplaceAll(strings.TrimSpace(r.Glob), "\\", "/")
	if g == "" {
		return nil, &Error{Rule: r, Reason: "empty glob"}
	}
	dirOnly := strings.HasSuffix(g, "/")
	g = strings.TrimRight(g, "/")
	anchored := strings.HasPrefix(g, "/")
	g = strings.TrimLeft(g, "/")
	if g == "" {
		return nil, &Error{Rule: r, Reason: "glob matches only the root"}
	}
	if !doublestar.ValidatePattern(g) {
		return nil, &Error{Rule: r, Reason: "bad glob syntax"}
	}
	if !anchored && !strings.Contains(g, "/") {
		g = "**/" + g
	}

	c := &compiled{rule: r, glob: g, dirOnly: dirOnly}
	if strings.HasSuffix(g, "/**") {
		// "dir/**" covers the directory itself too.
		c.self = strings.TrimSuffix(g, "/**")
	}
	return c, nil
}

func firstMatch(cs []*compiled, rel string, isDir bool) *compiled {
	for _, c := range cs {
		if c.match(rel, isDir) {
			return c
		}
	}
	return nil
}

// Match reports whether relPath survives every stage.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	return m.Decide(relPath, isDir).Matched()
}

// Decide evaluates relPath and returns the stage that settled it.
func (m *Matcher) Decide(relPath string, isDir bool) Decision {
	rel := strings.Trim(strings.ReplaceAll(relPath, "\\", "/"), "/")
	if rel == "" || rel == "." {
		return Decision{Verdict: Matched}
	}

	inc := firstMatch(m.includes, rel, isDir)

	if !m.noIgnore && m.ignorer != nil && m.ignorer.Ignored(rel, isDir) && inc == nil {
		return Decision{Verdict: Ignored}
	}

	if d := firstMatch(m.defaults, rel, isDir); d != nil {
		return Decision{Verdict: DefaultExcluded, Rule: &d.rule}
	}

	if ex := firstMatch(m.excludes, rel, isDir); ex != nil {
		switch {
		case inc != nil && m.includePriority:
			return m.extensionStage(rel, isDir, &inc.rule)
		case isDir && m.includePriority && len(m.includes) > 0:
			// Keep walking: an include may still claim a descendant.
			return Decision{Verdict: Matched}
		default:
			return Decision{Verdict: Excluded, Rule: &ex.rule}
		}
	}

	if isDir {
		return Decision{Verdict: Matched}
	}
	if len(m.includes) > 0 && inc == nil {
		return Decision{Verdict: NotIncluded}
	}
	var r *Rule
	if inc != nil {
		r = &inc.rule
	}
	return m.extensionStage(rel, isDir, r)
}

func (m *Matcher) extensionStage(rel string, isDir bool, r *Rule) Decision {
	if isDir || m.extensions == nil {
		return Decision{Verdict: Matched, Rule: r}
	}
	if _, ok := m.extensions[Extension(rel)]; !ok {
		return Decision{Verdict: ExtensionFiltered}
	}
	return Decision{Verdict: Matched, Rule: r}
}

// Rules returns the active rules in evaluation order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Extensions returns the sorted allow-list, nil when unrestricted.
func (m *Matcher) Extensions() []string {
	if m.extensions == nil {
		return nil
	}
	out := make([]string, 0, len(m.extensions))
	for ext := range m.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extension returns the lower-cased extension of p without the dot.
// Files without one report an empty string.
func Extension(p string) string {
	return NormalizeExtension(path.Ext(path.Base(strings.ReplaceAll(p, "\\", "/"))))
}

// NormalizeExtension strips leading dots and lower-cases ext.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
}
