// Package goid exposes the id of the calling goroutine, which the fiber and
// osthread packages use as the key for their per-goroutine registries.
package goid

import (
	"runtime"
)

// Get returns the current goroutine's ID.
//
// The ID is parsed from the header line of runtime.Stack, which always starts
// with "goroutine <id> [". It is never zero for a live goroutine.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
