//go:build linux

package tailer

import (
	"os"
	"syscall"
)

// inodeOf returns the inode number backing fi.
func inodeOf(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
