// Package reconcile brings the index back in line with the filesystem
// after offline changes.
//
// Files created or modified while the server was down are caught by
// the watcher's initial scan, because content-hash dedup makes re-adds
// cheap. What the scan cannot see is deletions: a file removed while
// nothing was watching leaves a stale document behind. Reconciliation
// walks the indexed documents and enqueues an unlink for every path
// that no longer exists on disk.
package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/localrag/localrag/internal/queue"
	"github.com/localrag/localrag/internal/store"
)

// Reconciler detects stale index entries for one corpus.
type Reconciler struct {
	store    *store.Store
	queue    *queue.Queue
	root     string
	corpusID string
	logger   *slog.Logger
}

// New creates a reconciler for the corpus rooted at root.
func New(s *store.Store, q *queue.Queue, root, corpusID string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, queue: q, root: root, corpusID: corpusID, logger: logger}
}

// Run stats every indexed document and enqueues an unlink event for
// each one missing from disk. It returns the number of stale documents
// found. Stat errors other than non-existence leave the document
// untouched; a transient permission problem must not delete index data.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	docs, err := r.store.ListDocuments(ctx, "")
	if err != nil {
		return 0, err
	}

	stale := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stale, err
		}
		abs := filepath.Join(r.root, doc.Path)
		_, err := os.Stat(abs)
		if err == nil {
			continue
		}
		if !os.IsNotExist(err) {
			r.logger.Warn("reconcile stat failed, keeping document",
				"path", doc.Path, "error", err)
			continue
		}
		r.queue.Enqueue(queue.Event{
			CorpusID:     r.corpusID,
			AbsolutePath: abs,
			RelativePath: doc.Path,
			Kind:         queue.KindUnlink,
		})
		stale++
	}
	if stale > 0 {
		r.logger.Info("reconcile found stale documents", "count", stale)
	}
	return stale, nil
}
