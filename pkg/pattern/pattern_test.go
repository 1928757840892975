package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIgnorer map[string]bool

func (f fakeIgnorer) Ignored(rel string, _ bool) bool { return f[rel] }

func TestIncludePriority(t *testing.T) {
	tests := []struct {
		name     string
		priority bool
		want     bool
	}{
		{"exclude wins by default", false, false},
		{"include wins with priority", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(Options{
				Include:         []string{"src/**"},
				Exclude:         []string{"src/gen/**"},
				IncludePriority: tt.priority,
			}, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match("src/gen/x.rs", false))
			assert.True(t, m.Match("src/main.rs", false))
		})
	}
}

func TestNoIncludesMatchesEverythingNotExcluded(t *testing.T) {
	m, err := New(Options{Exclude: []string{"*.log"}}, nil, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("README.md", false))
	assert.True(t, m.Match("deep/nested/file.go", false))
	assert.False(t, m.Match("logs/app.log", false))
}

func TestIncludesRestrictFiles(t *testing.T) {
	m, err := New(Options{Include: []string{"*.go"}}, nil, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("cmd/main.go", false))
	assert.False(t, m.Match("README.md", false))
	// Directories pass so traversal can reach included files.
	assert.True(t, m.Match("docs", true))
}

func TestDefaultExcludes(t *testing.T) {
	m, err := New(Options{}, nil, nil)
	require.NoError(t, err)

	assert.False(t, m.Match(".git", true))
	assert.False(t, m.Match(".git/config", false))
	assert.False(t, m.Match("web/node_modules", true))
	assert.False(t, m.Match("web/node_modules/react/index.js", false))
	assert.False(t, m.Match("bin/tool.exe", false))
	assert.True(t, m.Match("target.go", false))

	m, err = New(Options{NoDefaultExcludes: true}, nil, nil)
	require.NoError(t, err)
	assert.True(t, m.Match(".git/config", false))
}

func TestDirectoryPatterns(t *testing.T) {
	m, err := New(Options{Exclude: []string{"build/", "/vendor"}}, nil, nil)
	require.NoError(t, err)

	assert.False(t, m.Match("build", true))
	assert.False(t, m.Match("pkg/build", true))
	assert.True(t, m.Match("pkg/build", false), "dir-only pattern must not hit files")
	assert.False(t, m.Match("vendor/lib.go", false))
	assert.True(t, m.Match("pkg/vendor/lib.go", false), "anchored pattern only hits the root")
}

func TestExtensionAllowList(t *testing.T) {
	m, err := New(Options{Extensions: []string{".GO", "md"}}, nil, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("main.go", false))
	assert.True(t, m.Match("docs/intro.md", false))
	assert.False(t, m.Match("script.py", false))
	assert.True(t, m.Match("scripts", true))
	assert.Equal(t, []string{"go", "md"}, m.Extensions())
	assert.Equal(t, ExtensionFiltered, m.Decide("script.py", false).Verdict)
}

func TestIgnoreStageAndReinclude(t *testing.T) {
	ign := fakeIgnorer{"dist/bundle.js": true, "notes.txt": true}

	m, err := New(Options{}, ign, nil)
	require.NoError(t, err)
	assert.False(t, m.Match("dist/bundle.js", false))
	assert.Equal(t, Ignored, m.Decide("notes.txt", false).Verdict)

	m, err = New(Options{Include: []string{"dist/**"}}, ign, nil)
	require.NoError(t, err)
	assert.True(t, m.Match("dist/bundle.js", false))

	m, err = New(Options{NoIgnore: true}, ign, nil)
	require.NoError(t, err)
	assert.True(t, m.Match("notes.txt", false))
}

func TestMalformedGlob(t *testing.T) {
	_, err := New(Options{Exclude: []string{"src/[abc"}}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPattern))

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "src/[abc", perr.Rule.Glob)
	assert.Equal(t, Exclude, perr.Rule.Polarity)

	assert.Error(t, Validate([]string{"  "}, Include, SourceCLI))
	assert.NoError(t, Validate([]string{"**/*.{go,md}"}, Include, SourceCLI))
}

func TestRulesOrder(t *testing.T) {
	m, err := New(Options{
		Include:       []string{"a"},
		Exclude:       []string{"b"},
		ConfigExclude: []string{"c"},
	}, nil, nil)
	require.NoError(t, err)

	rules := m.Rules()
	require.Len(t, rules, len(DefaultExcludes)+3)
	tail := rules[len(DefaultExcludes):]
	assert.Equal(t, Rule{Glob: "c", Polarity: Exclude, Source: SourceConfig}, tail[0])
	assert.Equal(t, Rule{Glob: "b", Polarity: Exclude, Source: SourceCLI}, tail[1])
	assert.Equal(t, Rule{Glob: "a", Polarity: Include, Source: SourceCLI}, tail[2])
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "go", Extension("pkg/a/b.GO"))
	assert.Equal(t, "", Extension("Makefile"))
	assert.Equal(t, "gz", Extension("dist/a.tar.gz"))
}
