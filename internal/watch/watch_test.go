package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, w *Watcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatch_RunsOnStartAndOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))

	var runs atomic.Int32
	stop := startWatcher(t, &Watcher{
		Root:     root,
		Pattern:  "**/*.json",
		Debounce: 20 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("failures do not stop the watcher")
		},
	})
	defer stop()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", "app.json"), []byte(`{"a":1}`), 0o644))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatch_MissingRoot(t *testing.T) {
	w := &Watcher{Root: filepath.Join(t.TempDir(), "missing"), Run: func(context.Context) error { return nil }}
	err := w.Watch(context.Background())
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	w := &Watcher{Root: "/cfg", Pattern: "**/*.yaml"}

	assert.True(t, w.relevant(fsnotify.Event{Name: "/cfg/a/b.yaml", Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/cfg/b.yaml", Op: fsnotify.Remove}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/cfg/b.json", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/cfg/b.yaml", Op: fsnotify.Chmod}))

	all := &Watcher{Root: "/cfg"}
	assert.True(t, all.relevant(fsnotify.Event{Name: "/cfg/anything", Op: fsnotify.Create}))
}
