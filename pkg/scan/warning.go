package scan

import (
	"fmt"
	"path/filepath"
)

// Reason classifies a scan warning.
type Reason string

const (
	ReasonUnreadable    Reason = "unreadable"
	ReasonBrokenSymlink Reason = "broken symlink"
	ReasonSymlinkCycle  Reason = "symlink cycle"
	ReasonBinary        Reason = "binary content"
	ReasonTooLarge      Reason = "file too large"
	ReasonEmpty         Reason = "empty file"
	ReasonInvalidUTF8   Reason = "invalid utf-8"
)

// Warning is a non-fatal problem with a single entry. The entry is
// skipped and the walk continues.
type Warning struct {
	Path   string
	Reason Reason
	Err    error
}

func (w Warning) String() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", w.Path, w.Reason, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

func realPathID(abs string) (fileID, bool) {
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fileID{path: abs}, false
	}
	return fileID{path: real}, true
}
