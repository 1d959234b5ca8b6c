//go:build !linux

package tailer

import "os"

// inodeOf returns 0 on platforms without stable inode numbers; rotation
// detection then relies on the size-shrink check alone.
func inodeOf(fi os.FileInfo) uint64 { return 0 }
