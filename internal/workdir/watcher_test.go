package workdir

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	d := setupTestDir(t)
	writeFile(t, d, IgnoreFile, "scratch\n")
	require.NoError(t, os.MkdirAll(d.Abs("scratch"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu     sync.Mutex
		events []Event
		done   = make(chan error, 1)
	)
	go func() {
		done <- d.Watch(ctx, func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		})
	}()

	seen := func(p string) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Path == p {
				return true
			}
		}
		return false
	}

	// the watcher registers directories asynchronously; keep touching the file
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(d.Abs("hello.txt"), []byte(time.Now().String()), 0644)
		return seen("hello.txt")
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(d.Abs("scratch"), "junk"), []byte("x"), 0644))
	require.NoError(t, os.Remove(d.Abs("hello.txt")))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Path == "hello.txt" && e.Type == EventRemove {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, seen("scratch/junk"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
