package goid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Stable(t *testing.T) {
	id := Get()
	require.NotZero(t, id)
	assert.Equal(t, id, Get())
}

// TestGet_DistinctPerGoroutine checks that concurrently live goroutines
// never share an ID.
func TestGet_DistinctPerGoroutine(t *testing.T) {
	const n = 32
	var (
		wg    sync.WaitGroup
		ready sync.WaitGroup
		mu    sync.Mutex
		seen  = make(map[uint64]struct{}, n)
		block = make(chan struct{})
	)
	for range n {
		wg.Add(1)
		ready.Add(1)
		go func() {
			defer wg.Done()
			id := Get()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
			ready.Done()
			<-block
		}()
	}
	ready.Wait()
	close(block)
	wg.Wait()
	assert.Len(t, seen, n)
	_, ok := seen[Get()]
	assert.False(t, ok)
}
