package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance
var Logger *zap.Logger

// Options controls where and how verbosely the logger writes.
type Options struct {
	Debug      bool
	AppName    string
	AppVersion string
	// File redirects all output there.
	File string
	// Quiet keeps only errors on stderr.
	Quiet bool
	// Discard drops all output when neither File nor Debug is set. The
	// interactive picker owns the terminal while it runs.
	Discard bool
}

func Setup(opts Options) error {
	var err error
	var cfg zap.Config

	if opts.Discard && opts.File == "" && !opts.Debug {
		Logger = zap.NewNop()
		zap.ReplaceGlobals(Logger)
		return nil
	}

	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}

	// Add default fields
	cfg.InitialFields = map[string]interface{}{
		"appName":    opts.AppName,
		"appVersion": opts.AppVersion,
	}

	switch {
	case opts.File != "":
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				Logger = zap.NewNop()
				return fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	case opts.Quiet && !opts.Debug:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	Logger, err = cfg.Build()
	if err != nil {
		Logger = zap.NewExample()
		return err
	}

	zap.ReplaceGlobals(Logger)
	return nil
}
