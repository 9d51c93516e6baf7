package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescribe-dev/codescribe/internal/scanner"
)

// Test Plan for watcher:
// - A burst of writes inside the debounce window fires one batch with all
//   changed paths
// - Changes under the work directory and ignored directories never fire
// - Files in directories created after Start are still observed
// - Stop is idempotent

func startWatcher(t *testing.T, root string, ignore []string) (*Watcher, chan []string) {
	t.Helper()

	w, err := New(root, ignore, 100*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	batches := make(chan []string, 16)
	w.Start(ctx, func(files []string) { batches <- files })
	return w, batches
}

func waitBatch(t *testing.T, batches chan []string) []string {
	t.Helper()
	select {
	case files := <-batches:
		return files
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, batches := startWatcher(t, root, nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package b"), 0644))

	files := waitBatch(t, batches)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, files)
}

func TestWatcher_IgnoresWorkDirAndOutput(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, scanner.WorkDir, "cache"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))

	_, batches := startWatcher(t, root, []string{"docs"})

	require.NoError(t, os.WriteFile(filepath.Join(root, scanner.WorkDir, "cache", "x.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "index.md"), []byte("# hi"), 0644))

	select {
	case files := <-batches:
		t.Fatalf("ignored paths fired a batch: %v", files)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_SeesNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, batches := startWatcher(t, root, nil)

	newDir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(newDir, 0755))

	// Give the watcher a moment to register the new directory before
	// writing into it.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "new.go"), []byte("package pkg"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case files := <-batches:
			for _, f := range files {
				if f == "pkg/new.go" {
					return
				}
			}
		case <-deadline:
			t.Fatal("never observed the file in the new directory")
		}
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	w, _ := startWatcher(t, t.TempDir(), nil)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
