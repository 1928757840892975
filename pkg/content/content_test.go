package content

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drengskapur/codepick/pkg/scan"
)

func write(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"text", "main.go", []byte("package main\n"), nil},
		{"utf8 text", "notes.md", []byte("héllo wörld ünïcode"), nil},
		{"empty", "empty.txt", nil, ErrEmpty},
		{"nul byte", "blob", []byte("abc\x00def"), ErrBinary},
		{"binary extension", "logo.png", []byte("not really a png"), ErrBinary},
		{"control characters", "ctl", bytes.Repeat([]byte{1, 2, 3, 'a'}, 20), ErrBinary},
		{"invalid utf8", "latin1.txt", []byte("caf\xe9 au lait"), ErrInvalidUTF8},
		{"too large", "big.txt", bytes.Repeat([]byte("a"), MaxFileSize+1), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := write(t, tt.file, tt.data)
			got, err := Load(p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, Skippable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.False(t, Skippable(err))
	assert.Equal(t, scan.ReasonUnreadable, Reason(err))
}

func TestReason(t *testing.T) {
	assert.Equal(t, scan.ReasonBinary, Reason(ErrBinary))
	assert.Equal(t, scan.ReasonTooLarge, Reason(ErrTooLarge))
	assert.Equal(t, scan.ReasonEmpty, Reason(ErrEmpty))
	assert.Equal(t, scan.ReasonInvalidUTF8, Reason(ErrInvalidUTF8))
}
