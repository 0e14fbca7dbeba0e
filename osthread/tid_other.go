//go:build !linux && !windows

package osthread

func gettid() int64 { return 0 }

func setOSThreadName(string) error { return nil }
