package server

import (
	"errors"
	"syscall"

	"github.com/brettbedarf/unifs"
)

// detail errors are checked before the kinds they wrap.
var errnos = []struct {
	err   error
	errno syscall.Errno
}{
	{unifs.ErrExist, syscall.EEXIST},
	{unifs.ErrNotEmpty, syscall.ENOTEMPTY},
	{unifs.ErrInUse, syscall.EBUSY},
	{unifs.ErrReadOnlyFS, syscall.EROFS},
	{unifs.ErrNotADirectory, syscall.ENOTDIR},
	{unifs.ErrCrossDevice, syscall.EXDEV},
	{unifs.ErrBufferOverflow, syscall.EOVERFLOW},
	{unifs.ErrFileNotFound, syscall.ENOENT},
	{unifs.ErrDirectoryNotFound, syscall.ENOENT},
	{unifs.ErrInvalidPath, syscall.EINVAL},
	{unifs.ErrInvalidArgument, syscall.EINVAL},
	{unifs.ErrUnauthorizedAccess, syscall.EACCES},
	{unifs.ErrNotSupported, syscall.ENOTSUP},
	{unifs.ErrDisposed, syscall.EBADF},
	{unifs.ErrInvalidOperation, syscall.EPERM},
	{unifs.ErrIO, syscall.EIO},
}

// Errno maps a unifs error to the errno reported to the kernel.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
