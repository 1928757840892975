package scan

import (
	"fmt"
	"os"
	"path/filepath"
)

// Summary is a cheap description of on-disk state used to detect stale
// caches. It is not an integrity check.
type Summary struct {
	Entries    int    `json:"entries"`
	MaxModTime int64  `json:"maxModTime"`
	ModSum     uint64 `json:"modSum"`
}

func summarize(rootMod int64, entries []Entry) Summary {
	s := Summary{Entries: len(entries), MaxModTime: rootMod, ModSum: uint64(rootMod)}
	for _, e := range entries {
		if e.ModTime > s.MaxModTime {
			s.MaxModTime = e.ModTime
		}
		s.ModSum += uint64(e.ModTime)
	}
	return s
}

// Restat recomputes the summary of a previous scan from the current disk
// state without reading any directory. Added or removed children show up
// through their parent directory's modification time; extra lists files
// outside the entry set, such as ignore files, whose changes must also be
// noticed.
func Restat(root string, entries []Entry, extra []string) (Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	current := make([]Entry, len(entries))
	for i, e := range entries {
		fi, err := os.Lstat(filepath.Join(root, filepath.FromSlash(e.RelPath)))
		if err != nil {
			return Summary{}, fmt.Errorf("entry %s changed: %w", e.RelPath, err)
		}
		current[i] = Entry{RelPath: e.RelPath, ModTime: fi.ModTime().UnixNano()}
	}
	return WithExtra(summarize(info.ModTime().UnixNano(), current), extra)
}

// WithExtra folds the modification times of extra files into s, matching
// what Restat computes for the same list.
func WithExtra(s Summary, extra []string) (Summary, error) {
	for _, p := range extra {
		fi, err := os.Stat(p)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		m := fi.ModTime().UnixNano()
		s.ModSum += uint64(m)
		if m > s.MaxModTime {
			s.MaxModTime = m
		}
	}
	return s, nil
}
