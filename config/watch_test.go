package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWatch_ReloadsOnWrite verifies a write to the watched file is applied
// and observed through a listener.
func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fiber.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fiber:\n  stack_size: 1\n"), 0o644))

	s := NewStore()
	size := MustLookup(s, "fiber.stack_size", 0, "")
	require.NoError(t, s.LoadFile(path))
	require.Equal(t, 1, size.Get())

	changed := make(chan int, 8)
	size.AddListener(func(_, n int) { changed <- n })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, path, nil) }()

	// the watch may not be registered yet, so keep writing until seen
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for got := false; !got; {
		select {
		case n := <-changed:
			require.Equal(t, 2, n)
			got = true
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, []byte("fiber:\n  stack_size: 2\n"), 0o644))
		case <-deadline:
			t.Fatal("reload not observed")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	s := NewStore()
	err := s.Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "x.yaml"), nil)
	require.Error(t, err)
}
