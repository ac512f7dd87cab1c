package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/localrag/localrag/internal/errors"
)

// corpusLock is a cross-process lock guaranteeing at most one writer
// per corpus data directory. A second serve process against the same
// corpus fails fast instead of corrupting the index.
type corpusLock struct {
	flock  *flock.Flock
	locked bool
}

// acquireCorpusLock takes the writer lock for dir without blocking.
func acquireCorpusLock(dir string) (*corpusLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("create corpus directory: %w", err))
	}
	l := &corpusLock{flock: flock.New(filepath.Join(dir, "corpus.lock"))}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("acquire corpus lock: %w", err))
	}
	if !acquired {
		return nil, errors.Newf(errors.ErrCodeCorpusLocked,
			"corpus at %s is locked by another process", dir)
	}
	l.locked = true
	return l, nil
}

func (l *corpusLock) release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
