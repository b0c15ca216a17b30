//go:build !linux

package physfs

import (
	"io/fs"
	"os"
	"time"
)

func creationTime(_ string, info fs.FileInfo) time.Time { return info.ModTime() }

func accessTime(_ string, info fs.FileInfo) time.Time { return info.ModTime() }

// setTimes updates the access and write times. A zero time is left as is.
func setTimes(native string, atime, mtime time.Time) error {
	return os.Chtimes(native, atime, mtime)
}
