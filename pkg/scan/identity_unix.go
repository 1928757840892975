//go:build unix

package scan

import (
	"io/fs"
	"syscall"
)

// fileID identifies a directory independently of the path used to reach it.
type fileID struct {
	dev  uint64
	ino  uint64
	path string
}

func identity(abs string, info fs.FileInfo) (fileID, bool) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
	}
	return realPathID(abs)
}
