package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/queue"
)

type eventSink struct {
	mu     sync.Mutex
	events []queue.Event
}

func (s *eventSink) record(_ context.Context, ev queue.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) find(rel string, kind queue.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.RelativePath == rel && ev.Kind == kind {
			return true
		}
	}
	return false
}

func (s *eventSink) all() []queue.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.Event(nil), s.events...)
}

func startWatcher(t *testing.T, root string) (*Watcher, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	q := queue.New(sink.record, nil)

	w, err := New(q, Options{Root: root, CorpusID: "test-corpus"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Start())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = q.Run(ctx) }()
	go func() { _ = w.Run(ctx) }()
	return w, sink
}

func waitFor(t *testing.T, sink *eventSink, rel string, kind queue.Kind) {
	t.Helper()
	require.Eventually(t, func() bool { return sink.find(rel, kind) },
		5*time.Second, 10*time.Millisecond,
		"expected %s event for %s, got %v", kind, rel, sink.all())
}

func TestWatcher_InitialScanEmitsAdds(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("b"), 0o644))

	_, sink := startWatcher(t, root)

	waitFor(t, sink, "top.txt", queue.KindAdd)
	waitFor(t, sink, "sub/nested.txt", queue.KindAdd)
}

func TestWatcher_CreateAndModify(t *testing.T) {
	root := t.TempDir()
	_, sink := startWatcher(t, root)

	path := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	waitFor(t, sink, "new.txt", queue.KindAdd)

	require.NoError(t, os.WriteFile(path, []byte("v2 longer content"), 0o644))
	waitFor(t, sink, "new.txt", queue.KindChange)
}

func TestWatcher_Delete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, sink := startWatcher(t, root)
	waitFor(t, sink, "doomed.txt", queue.KindAdd)

	require.NoError(t, os.Remove(path))
	waitFor(t, sink, "doomed.txt", queue.KindUnlink)
}

func TestWatcher_DeleteDirectoryUnlinksContents(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deep", "c.txt"), []byte("c"), 0o644))

	_, sink := startWatcher(t, root)
	waitFor(t, sink, "sub/a.txt", queue.KindAdd)
	waitFor(t, sink, "sub/b.txt", queue.KindAdd)
	waitFor(t, sink, "sub/deep/c.txt", queue.KindAdd)

	// Moving the directory out of the root yields a single event for
	// the directory itself; every file inside must still be unlinked.
	require.NoError(t, os.Rename(dir, filepath.Join(t.TempDir(), "moved")))
	waitFor(t, sink, "sub/a.txt", queue.KindUnlink)
	waitFor(t, sink, "sub/b.txt", queue.KindUnlink)
	waitFor(t, sink, "sub/deep/c.txt", queue.KindUnlink)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	_, sink := startWatcher(t, root)

	dir := filepath.Join(root, "created")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inside.txt"), []byte("y"), 0o644))

	waitFor(t, sink, "created/inside.txt", queue.KindAdd)
}

func TestWatcher_IgnoresDottedAndVendorDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{".git", "node_modules", "vendor"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "f.txt"), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.txt"), []byte("x"), 0o644))

	_, sink := startWatcher(t, root)
	waitFor(t, sink, "visible.txt", queue.KindAdd)

	for _, ev := range sink.all() {
		assert.NotContains(t, ev.RelativePath, ".git")
		assert.NotContains(t, ev.RelativePath, "node_modules")
		assert.NotContains(t, ev.RelativePath, "vendor")
	}
}

func TestWatcher_EventsCarryCorpusID(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644))

	_, sink := startWatcher(t, root)
	waitFor(t, sink, "f.txt", queue.KindAdd)

	for _, ev := range sink.all() {
		assert.Equal(t, "test-corpus", ev.CorpusID)
		assert.True(t, filepath.IsAbs(ev.AbsolutePath))
	}
}
