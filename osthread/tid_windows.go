//go:build windows

package osthread

import (
	"golang.org/x/sys/windows"
)

func gettid() int64 {
	return int64(windows.GetCurrentThreadId())
}

func setOSThreadName(string) error { return nil }
