package store

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// diskFreeBytes reports the free space available to an unprivileged
// writer on the filesystem backing path (or its parent directory, if path
// does not yet exist), used by the eager out-of-space check in
// builder.go.
func diskFreeBytes(path string) (int64, error) {
	dir := filepath.Dir(path)
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
