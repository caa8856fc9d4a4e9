package rulefile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Loader applies a rules file
type Loader interface {
	LoadRules(ctx context.Context, path string) (int, error)
}

// Watcher reloads a rules file whenever it changes on disk
type Watcher struct {
	path     string
	loader   Loader
	logger   *logrus.Logger
	debounce time.Duration
}

func NewWatcher(path string, loader Loader, logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file by rename are seen too.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.WithField("path", w.path).Info("Watching alert rules file")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// editors emit bursts of events per save
			pending = time.After(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Rules watcher error")

		case <-pending:
			pending = nil
			n, err := w.loader.LoadRules(ctx, w.path)
			if err != nil {
				w.logger.WithError(err).WithField("path", w.path).Error("Failed to reload alert rules; keeping previous rules")
				continue
			}
			w.logger.WithFields(logrus.Fields{"path": w.path, "rules": n}).Info("Reloaded alert rules")
		}
	}
}
