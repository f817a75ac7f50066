package model

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the lifecycle when artifact files change on disk.
type Watcher struct {
	lifecycle *Lifecycle
	dir       string
	debounce  time.Duration
	logger    *logrus.Logger
}

// NewWatcher watches dir and reloads lifecycle after debounce of quiet time.
func NewWatcher(lifecycle *Lifecycle, dir string, debounce time.Duration, logger *logrus.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{lifecycle: lifecycle, dir: dir, debounce: debounce, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.WithField("dir", w.dir).Info("Watching model artifacts")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isArtifactEvent(ev) {
				continue
			}
			w.logger.WithFields(logrus.Fields{"file": ev.Name, "op": ev.Op.String()}).Debug("Artifact changed")
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Artifact watcher error")
		case <-timer.C:
			if _, err := w.lifecycle.Reload(ctx); err != nil {
				w.logger.WithError(err).Warn("Artifact reload failed, keeping current model")
			}
		}
	}
}

func isArtifactEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	for _, name := range ArtifactFiles {
		if base == name {
			return true
		}
	}
	return false
}
