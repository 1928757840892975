//go:build !unix

package scan

import "io/fs"

// fileID identifies a directory independently of the path used to reach it.
type fileID struct {
	dev  uint64
	ino  uint64
	path string
}

func identity(abs string, _ fs.FileInfo) (fileID, bool) {
	return realPathID(abs)
}
