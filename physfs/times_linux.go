//go:build linux

package physfs

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// creationTime reads the birth time through statx, falling back to the
// inode change time on filesystems that do not record it.
func creationTime(native string, info fs.FileInfo) time.Time {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, native, 0, unix.STATX_BTIME|unix.STATX_CTIME, &stx); err == nil {
		if stx.Mask&unix.STATX_BTIME != 0 {
			return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
		}
		return time.Unix(stx.Ctime.Sec, int64(stx.Ctime.Nsec))
	}
	return info.ModTime()
}

func accessTime(native string, info fs.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(native, &st); err != nil {
		return info.ModTime()
	}
	return time.Unix(st.Atim.Unix())
}

// setTimes updates the access and write times. A zero time is left as is.
func setTimes(native string, atime, mtime time.Time) error {
	ts := []unix.Timespec{timespec(atime), timespec(mtime)}
	return unix.UtimesNano(native, ts)
}

func timespec(t time.Time) unix.Timespec {
	if t.IsZero() {
		return unix.Timespec{Nsec: unix.UTIME_OMIT}
	}
	return unix.NsecToTimespec(t.UnixNano())
}
