// Package watcher feeds filesystem changes under a watch root into the
// change queue.
//
// fsnotify only watches single directories, so the watcher registers
// every directory in the tree and adds registrations as directories
// appear. Events are forwarded one-to-one without debouncing or
// coalescing; the pipeline's content-hash dedup makes redundant events
// cheap, and strict ordering is worth more than fewer events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/localrag/localrag/internal/errors"
	"github.com/localrag/localrag/internal/queue"
)

// defaultIgnoreDirs are directory names never watched or scanned, on
// top of dotted directories which are always skipped.
var defaultIgnoreDirs = []string{"node_modules", "vendor", "target", "__pycache__"}

// Options configures a Watcher.
type Options struct {
	// Root is the absolute watch root.
	Root string
	// CorpusID stamps every emitted event.
	CorpusID string
	// IgnoreDirs are directory names to skip. Nil means the defaults.
	IgnoreDirs []string
	Logger     *slog.Logger
}

// Watcher watches one corpus root recursively.
type Watcher struct {
	fsw      *fsnotify.Watcher
	queue    *queue.Queue
	root     string
	corpusID string
	ignore   map[string]struct{}
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]struct{} // files already seen, for add vs change
}

// New creates a watcher emitting into q.
func New(q *queue.Queue, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = defaultIgnoreDirs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, name := range opts.IgnoreDirs {
		ignore[name] = struct{}{}
	}
	return &Watcher{
		fsw:      fsw,
		queue:    q,
		root:     filepath.Clean(opts.Root),
		corpusID: opts.CorpusID,
		ignore:   ignore,
		logger:   opts.Logger,
		known:    make(map[string]struct{}),
	}, nil
}

// Start registers the directory tree and emits a synthetic add event
// for every existing file, mirroring what a fresh watcher sees when
// pointed at a populated directory. Call Run afterwards.
func (w *Watcher) Start() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("scan error, skipping", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err)
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		w.emit(path, queue.KindAdd)
		return nil
	})
}

// Run forwards filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if w.ignoredPath(path) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			// Created and removed before we could stat; the matching
			// Remove event keeps the index consistent.
			return
		}
		if info.IsDir() {
			w.watchNewTree(path)
			return
		}
		w.emit(path, queue.KindAdd)

	case event.Op.Has(fsnotify.Write):
		w.emit(path, queue.KindChange)

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// Renames arrive as Rename(old) then Create(new); the old path
		// is treated as deleted.
		w.emitUnlink(path)
	}
}

// watchNewTree registers a directory created after Start, plus
// anything already inside it. Files written into the directory before
// the watch was added would otherwise be missed.
func (w *Watcher) watchNewTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		w.emit(path, queue.KindAdd)
		return nil
	})
}

func (w *Watcher) emit(absPath string, kind queue.Kind) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	_, seen := w.known[rel]
	if kind == queue.KindAdd && seen {
		kind = queue.KindChange
	}
	w.known[rel] = struct{}{}
	w.mu.Unlock()

	w.queue.Enqueue(queue.Event{
		CorpusID:     w.corpusID,
		AbsolutePath: absPath,
		RelativePath: filepath.ToSlash(rel),
		Kind:         kind,
	})
}

// emitUnlink emits an unlink for the path and, when the path was a
// directory, for every known file underneath it. A directory removal
// arrives as a single event for the directory itself, with nothing for
// the files inside.
func (w *Watcher) emitUnlink(absPath string) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return
	}
	prefix := rel + string(filepath.Separator)

	w.mu.Lock()
	delete(w.known, rel)
	var children []string
	for k := range w.known {
		if strings.HasPrefix(k, prefix) {
			children = append(children, k)
			delete(w.known, k)
		}
	}
	w.mu.Unlock()
	sort.Strings(children)

	for _, k := range children {
		w.queue.Enqueue(queue.Event{
			CorpusID:     w.corpusID,
			AbsolutePath: filepath.Join(w.root, k),
			RelativePath: filepath.ToSlash(k),
			Kind:         queue.KindUnlink,
		})
	}
	w.queue.Enqueue(queue.Event{
		CorpusID:     w.corpusID,
		AbsolutePath: absPath,
		RelativePath: filepath.ToSlash(rel),
		Kind:         queue.KindUnlink,
	})
}

// ignoredPath reports whether any element of the root-relative path is
// dotted or an ignored directory name.
func (w *Watcher) ignoredPath(absPath string) bool {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
		if _, ok := w.ignore[part]; ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ignoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := w.ignore[name]
	return ok
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
