package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// Destination says where a Document goes. With neither File nor
// Clipboard set the prompt is written to Stdout.
type Destination struct {
	Stdout    io.Writer
	File      string
	Clipboard bool
}

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

// Deliver writes doc to every requested destination. A clipboard failure
// falls back to Stdout when no file was written.
func Deliver(doc *Document, dest Destination, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dest.Stdout == nil {
		dest.Stdout = os.Stdout
	}

	wrote := false
	if dest.File != "" {
		if err := writeFile(doc, dest.File, logger); err != nil {
			return err
		}
		wrote = true
	}
	if dest.Clipboard {
		if err := copyToClipboard(doc.Prompt); err != nil {
			logger.Warn("Failed to copy prompt to clipboard", zap.Error(err))
			if wrote {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
		} else {
			logger.Info("Copied prompt to clipboard", zap.Int("bytes", len(doc.Prompt)))
			wrote = true
		}
	}
	if wrote {
		return nil
	}
	if _, err := doc.WriteTo(dest.Stdout); err != nil {
		logger.Error("Failed to write prompt to stdout", zap.Error(err))
		return err
	}
	return nil
}

func writeFile(doc *Document, path string, logger *zap.Logger) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("Failed to create output directory", zap.String("dir", dir), zap.Error(err))
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		logger.Error("Failed to create output file", zap.String("outputFile", path), zap.Error(err))
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer f.Close()

	n, err := doc.WriteTo(f)
	if err != nil {
		logger.Error("Failed to write output file", zap.String("outputFile", path), zap.Error(err))
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", path, err)
	}
	logger.Info("Wrote prompt", zap.String("outputFile", path), zap.Int64("bytes", n), zap.Int("files", len(doc.Files)))
	return nil
}
