package vfscore

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/golang/glog"
	pkgerrors "github.com/pkg/errors"
)

// package-internal aliases for github.com/pkg/errors' stack-trace-carrying
// constructors. They are unexported, so code outside vfscore imports
// github.com/pkg/errors itself.
var (
	errNew    = pkgerrors.New
	errErrorf = pkgerrors.Errorf
	errWrapf  = pkgerrors.Wrapf
)

// richError is an error formattable with stack-trace information, per
// github.com/pkg/errors's "Formatted printing of errors" convention.
type richError interface {
	error
	fmt.Formatter
}

// RichError wraps an arbitrary recovered value (as from recover()) into an
// error carrying a stack trace, for uniform logging at panic boundaries.
func RichError(v interface{}) error {
	if v == nil {
		return nil
	}
	switch e := v.(type) {
	case richError:
		return e
	case error:
		return pkgerrors.Wrap(e, e.Error()).(richError)
	default:
		return pkgerrors.New(fmt.Sprintf("%v", e)).(richError)
	}
}

// FsError is the cross-platform error type for the path/resource/protocol
// errors spec.md §6/§7 requires to be surfaced. It wraps a syscall.Errno so
// it compares equal to host errno values where they coincide.
type FsError syscall.Errno

const (
	EOKAY FsError = 0

	ENOENT  = FsError(syscall.ENOENT)
	ENOTDIR = FsError(syscall.ENOTDIR)
	EISDIR  = FsError(syscall.EISDIR)
	EEXIST  = FsError(syscall.EEXIST)
	ELOOP   = FsError(syscall.ELOOP)
	EINVAL  = FsError(syscall.EINVAL)
	EFAULT  = FsError(syscall.EFAULT)
	EIO     = FsError(syscall.EIO)
	EAGAIN  = FsError(syscall.EAGAIN)
	ENOSYS  = FsError(syscall.ENOSYS)
)

func (e FsError) Error() string {
	if e == EOKAY {
		return "no error"
	}
	return syscall.Errno(e).Error()
}

// Repr names the error for diagnostics, the way the teacher's FsError.Repr
// names it for wire representation to an HBI peer.
func (e FsError) Repr() string {
	switch e {
	case EOKAY:
		return "EOKAY"
	case ENOENT:
		return "ENOENT"
	case ENOTDIR:
		return "ENOTDIR"
	case EISDIR:
		return "EISDIR"
	case EEXIST:
		return "EEXIST"
	case ELOOP:
		return "ELOOP"
	case EINVAL:
		return "EINVAL"
	case EFAULT:
		return "EFAULT"
	case EIO:
		return "EIO"
	case EAGAIN:
		return "EAGAIN"
	case ENOSYS:
		return "ENOSYS"
	}
	panic(fmt.Sprintf("unexpected vfscore error number %#x on %s/%s - %+v",
		int(e), runtime.GOOS, runtime.GOARCH, syscall.Errno(e)))
}

// FsErr converts an arbitrary error from a host syscall or subclass hook
// into the portable FsError type, logging anything it can't classify and
// falling back to EIO.
func FsErr(err error) FsError {
	switch e := err.(type) {
	case nil:
		return EOKAY
	case FsError:
		return e
	case syscall.Errno:
		return FsError(e)
	case *os.PathError:
		return FsErr(e.Err)
	case *os.LinkError:
		return FsErr(e.Err)
	default:
		glog.Errorf("Unexpected vfscore error [%T] - %+v", err, err)
	}
	return EIO
}
