// Package content reads selected files for tokenizing and output, and
// rejects files that carry no useful prompt text.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/drengskapur/codepick/pkg/scan"
)

// MaxFileSize is the largest file that is read, 1 MiB.
const MaxFileSize = 1 << 20

var (
	ErrBinary      = errors.New("binary content")
	ErrTooLarge    = errors.New("file too large")
	ErrEmpty       = errors.New("empty file")
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// BinaryExtensions are rejected without opening the file.
var BinaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".xz": true, ".bz2": true, ".7z": true, ".rar": true,
	".so": true, ".dylib": true, ".a": true, ".o": true, ".obj": true, ".class": true, ".jar": true,
	".wasm": true, ".pyc": true, ".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true, ".flac": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true,
}

// Load reads the file at path and returns its bytes when it is non-empty
// UTF-8 text no larger than MaxFileSize.
func Load(path string) ([]byte, error) {
	if isCommonBinaryExtension(path) {
		return nil, ErrBinary
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, ErrEmpty
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if isBinary(data) {
		return nil, ErrBinary
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	return data, nil
}

// Reason maps a Load error onto a scan warning reason.
func Reason(err error) scan.Reason {
	switch {
	case errors.Is(err, ErrBinary):
		return scan.ReasonBinary
	case errors.Is(err, ErrTooLarge):
		return scan.ReasonTooLarge
	case errors.Is(err, ErrEmpty):
		return scan.ReasonEmpty
	case errors.Is(err, ErrInvalidUTF8):
		return scan.ReasonInvalidUTF8
	default:
		return scan.ReasonUnreadable
	}
}

// Skippable reports whether err means the file has no prompt content, as
// opposed to an I/O failure.
func Skippable(err error) bool {
	return errors.Is(err, ErrBinary) || errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrEmpty) || errors.Is(err, ErrInvalidUTF8)
}

// isBinary checks the first 512 bytes for NUL bytes or a high ratio of
// control characters. Bytes above 0x7f are left to the UTF-8 check.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return true
	}
	control := 0
	for _, b := range probe {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' && b != '\f' {
			control++
		}
	}
	return float64(control)/float64(len(probe)) > 0.3
}

func isCommonBinaryExtension(path string) bool {
	return BinaryExtensions[strings.ToLower(filepath.Ext(path))]
}
