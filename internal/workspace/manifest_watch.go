package workspace

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ManifestWatcher watches a workspace's Cargo.toml/Cargo.lock files for
// changes and signals on Changed whenever one is written, so the caller
// can trigger an internal workspace/reload and a buildTarget/didChange
// notification. This is additive: it never replaces manifest parsing or
// source discovery, both of which remain the caller's responsibility.
type ManifestWatcher struct {
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	Changed chan string
	done    chan struct{}
}

// NewManifestWatcher watches Cargo.toml and Cargo.lock directly under
// root. It does not recurse into member crates; callers that need that
// add each member's manifest directory themselves via Add.
func NewManifestWatcher(logger *slog.Logger, root string) (*ManifestWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	mw := &ManifestWatcher{
		logger:  logger,
		watcher: w,
		Changed: make(chan string, 8),
		done:    make(chan struct{}),
	}
	go mw.run()
	return mw, nil
}

// Add watches an additional directory, e.g. a workspace member's root.
func (m *ManifestWatcher) Add(dir string) error {
	return m.watcher.Add(dir)
}

func (m *ManifestWatcher) run() {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if name != "Cargo.toml" && name != "Cargo.lock" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case m.Changed <- ev.Name:
			default:
				m.logger.Warn("workspace: manifest change notification dropped, channel full", slog.String("file", ev.Name))
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("workspace: manifest watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (m *ManifestWatcher) Close() error {
	err := m.watcher.Close()
	<-m.done
	return err
}
