package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/drengskapur/codepick/pkg/tree"
)

// AppName names the config and cache directories.
const AppName = "codepick"

// File is the on-disk config. Unset keys stay nil so the defaults and
// flags can tell them apart from explicit zero values.
type File struct {
	Exclude            []string `toml:"exclude" yaml:"exclude"`
	Tokenizer          *string  `toml:"tokenizer" yaml:"tokenizer"`
	NoDefaultExcludes  *bool    `toml:"no_default_excludes" yaml:"no_default_excludes"`
	LineNumbers        *bool    `toml:"line_numbers" yaml:"line_numbers"`
	NoCodeblock        *bool    `toml:"no_codeblock" yaml:"no_codeblock"`
	TokenMapLines      *int     `toml:"token_map_lines" yaml:"token_map_lines"`
	TokenMapMinPercent *float64 `toml:"token_map_min_percent" yaml:"token_map_min_percent"`
	Hidden             *bool    `toml:"hidden" yaml:"hidden"`
	FollowSymlinks     *bool    `toml:"follow_symlinks" yaml:"follow_symlinks"`
	Sort               *string  `toml:"sort" yaml:"sort"`
}

// DefaultPath is <user config dir>/codepick/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, AppName, "config.toml"), nil
}

// LoadFile reads the config file. An empty customPath means the default
// location, where a missing file is not an error. A named file must exist.
// The returned path is empty when nothing was read.
func LoadFile(customPath string, logger *zap.Logger) (File, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var f File

	path := customPath
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			logger.Debug("No default config location", zap.Error(err))
			return f, "", nil
		}
		path = p
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return f, "", fmt.Errorf("failed to resolve config path %q: %w", path, err)
		}
		path = abs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && customPath == "" {
			logger.Debug("No config file found, using defaults", zap.String("path", path))
			return f, "", nil
		}
		logger.Error("Failed to read config file", zap.String("path", path), zap.Error(err))
		return f, "", fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &f, logger)
	default:
		err = decodeTOML(data, &f, logger)
	}
	if err != nil {
		logger.Error("Failed to parse config file", zap.String("path", path), zap.Error(err))
		return File{}, "", fmt.Errorf("%w: config file %s: %v", ErrInvalid, path, err)
	}
	logger.Debug("Loaded config file", zap.String("path", path))
	return f, path, nil
}

func decodeTOML(data []byte, f *File, logger *zap.Logger) error {
	meta, err := toml.Decode(string(data), f)
	if err != nil {
		return err
	}
	for _, key := range meta.Undecoded() {
		logger.Warn("Unknown config key", zap.String("key", key.String()))
	}
	return nil
}

func decodeYAML(data []byte, f *File, logger *zap.Logger) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{}
	for _, k := range fileKeys() {
		known[k] = true
	}
	for k := range raw {
		if !known[k] {
			logger.Warn("Unknown config key", zap.String("key", k))
		}
	}
	return yaml.Unmarshal(data, f)
}

func fileKeys() []string {
	return []string{
		"exclude", "tokenizer", "no_default_excludes", "line_numbers", "no_codeblock",
		"token_map_lines", "token_map_min_percent", "hidden", "follow_symlinks", "sort",
	}
}

// FlagSet reports whether a command-line flag was given explicitly.
type FlagSet interface {
	Changed(name string) bool
}

// Merge applies the file on top of o, skipping every key whose flag was
// given explicitly. Flags beat the file and the file beats the defaults.
// Config excludes always add to the rule list instead of replacing the
// command-line excludes.
func (o *Options) Merge(f File, flags FlagSet) {
	changed := func(name string) bool { return flags != nil && flags.Changed(name) }

	o.ConfigExclude = append(o.ConfigExclude, f.Exclude...)
	if f.Tokenizer != nil && !changed("tokenizer") {
		o.Tokenizer = *f.Tokenizer
	}
	if f.NoDefaultExcludes != nil && !changed("no-default-excludes") {
		o.NoDefaultExcludes = *f.NoDefaultExcludes
	}
	if f.LineNumbers != nil && !changed("line-numbers") {
		o.LineNumbers = *f.LineNumbers
	}
	if f.NoCodeblock != nil && !changed("no-codeblock") {
		o.NoCodeblock = *f.NoCodeblock
	}
	if f.TokenMapLines != nil && !changed("token-map-lines") {
		o.TokenMapLines = *f.TokenMapLines
	}
	if f.TokenMapMinPercent != nil && !changed("token-map-min-percent") {
		o.TokenMapMinPercent = *f.TokenMapMinPercent
	}
	if f.Hidden != nil && !changed("hidden") {
		o.Hidden = *f.Hidden
	}
	if f.FollowSymlinks != nil && !changed("follow-symlinks") {
		o.FollowSymlinks = *f.FollowSymlinks
	}
	if f.Sort != nil && !changed("sort") {
		o.Sort = tree.SortKey(*f.Sort)
	}
}
