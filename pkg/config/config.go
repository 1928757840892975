// Package config holds the single immutable options value that drives a
// run, and loads the optional user config file.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/drengskapur/codepick/pkg/cache"
	"github.com/drengskapur/codepick/pkg/pattern"
	"github.com/drengskapur/codepick/pkg/token"
	"github.com/drengskapur/codepick/pkg/tokenmap"
	"github.com/drengskapur/codepick/pkg/tree"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// OutputFormat selects the serialization handed to the output writer.
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatJSON     OutputFormat = "json"
	FormatXML      OutputFormat = "xml"
)

// ParseOutputFormat accepts markdown, md, json and xml.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	}
	return "", fmt.Errorf("%w: unknown output format %q", ErrInvalid, s)
}

// Options is every recognized option of a run.
type Options struct {
	Path string

	// Selection rules.
	Include           []string
	Exclude           []string
	ConfigExclude     []string
	Extensions        []string
	IncludePriority   bool
	Hidden            bool
	FollowSymlinks    bool
	NoIgnore          bool
	NoDefaultExcludes bool

	Sort      tree.SortKey
	Tokenizer string

	// Token map.
	TokenMap           bool
	TokenMapLines      int
	TokenMapMinPercent float64

	// Cache.
	UseCache bool
	Rescan   bool
	CacheDir string

	Workers     int
	Interactive bool

	// Output.
	OutputFormat OutputFormat
	OutputFile   string
	Clipboard    bool
	LineNumbers  bool
	NoCodeblock  bool
}

// Defaults returns the options used when neither flags nor the config
// file say otherwise.
func Defaults() Options {
	return Options{
		Path:               ".",
		Sort:               tree.NameAsc,
		Tokenizer:          token.Default,
		TokenMapLines:      tokenmap.DefaultMaxLines,
		TokenMapMinPercent: tokenmap.DefaultMinPercent,
		UseCache:           true,
		Workers:            runtime.NumCPU(),
		Interactive:        true,
		OutputFormat:       FormatMarkdown,
	}
}

// Validate checks every field and compiles the patterns so a bad glob
// fails before any scan work.
func (o *Options) Validate() error {
	if _, err := tree.ParseSortKey(string(o.Sort)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	canon, err := token.Canonical(o.Tokenizer)
	if err != nil {
		return err
	}
	o.Tokenizer = canon
	if o.TokenMapLines <= 0 {
		return fmt.Errorf("%w: token map lines must be positive, got %d", ErrInvalid, o.TokenMapLines)
	}
	if o.TokenMapMinPercent < 0 || o.TokenMapMinPercent > 100 {
		return fmt.Errorf("%w: token map min percent must be within 0..100, got %g", ErrInvalid, o.TokenMapMinPercent)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if _, err := ParseOutputFormat(string(o.OutputFormat)); err != nil {
		return err
	}
	if err := pattern.Validate(o.Include, pattern.Include, pattern.SourceCLI); err != nil {
		return err
	}
	if err := pattern.Validate(o.Exclude, pattern.Exclude, pattern.SourceCLI); err != nil {
		return err
	}
	return pattern.Validate(o.ConfigExclude, pattern.Exclude, pattern.SourceConfig)
}

// PatternOptions is the matcher view of the options.
func (o Options) PatternOptions() pattern.Options {
	return pattern.Options{
		Include:           o.Include,
		Exclude:           o.Exclude,
		ConfigExclude:     o.ConfigExclude,
		Extensions:        o.Extensions,
		IncludePriority:   o.IncludePriority,
		NoIgnore:          o.NoIgnore,
		NoDefaultExcludes: o.NoDefaultExcludes,
	}
}

// RuleSet is the cache fingerprint view of the options.
func (o Options) RuleSet() cache.RuleSet {
	return cache.RuleSet{
		Include:           o.Include,
		Exclude:           o.Exclude,
		ConfigExclude:     o.ConfigExclude,
		Extensions:        o.Extensions,
		IncludePriority:   o.IncludePriority,
		Hidden:            o.Hidden,
		FollowSymlinks:    o.FollowSymlinks,
		NoIgnore:          o.NoIgnore,
		NoDefaultExcludes: o.NoDefaultExcludes,
	}
}

// TokenMapOptions is the token map view of the options.
func (o Options) TokenMapOptions() tokenmap.Options {
	return tokenmap.Options{MaxLines: o.TokenMapLines, MinPercent: o.TokenMapMinPercent}
}

// HasSelectionFlags reports whether include or extension filters were
// given, which makes the interactive picker unnecessary.
func (o Options) HasSelectionFlags() bool {
	return len(o.Include) > 0 || len(o.Extensions) > 0
}
