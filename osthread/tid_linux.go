//go:build linux

package osthread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxNameLen is the kernel's TASK_COMM_LEN minus the terminating NUL.
const maxNameLen = 15

func gettid() int64 {
	return int64(unix.Gettid())
}

func setOSThreadName(name string) error {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	b, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(b)), 0, 0, 0)
}
