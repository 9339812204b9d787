package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher turns writes to the note database into change triggers. It watches
// the database's directory because sqlite replaces -wal and -shm files, which
// would drop a watch pinned to the file itself.
type Watcher struct {
	dir     string
	base    string
	watcher *fsnotify.Watcher
	syncer  *Syncer
	log     *zap.Logger
}

// NewWatcher builds a watcher for the database at dbPath that calls
// syncer.NotesChanged on every relevant write.
func NewWatcher(dbPath string, s *Syncer, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		base:    filepath.Base(absPath),
		watcher: fsWatcher,
		syncer:  s,
		log:     log,
	}, nil
}

// Start consumes events. Blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !w.isDatabaseFile(event.Name) {
		return
	}

	w.log.Debug("database changed", zap.String("file", filepath.Base(event.Name)))
	w.syncer.NotesChanged()
}

// isDatabaseFile matches the database and its sqlite sidecar files.
func (w *Watcher) isDatabaseFile(path string) bool {
	base := filepath.Base(path)
	if base == w.base {
		return true
	}
	return strings.HasPrefix(base, w.base+"-")
}
