package jobfile

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a job file when it changes on disk
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	last     []job.Spec
}

// NewWatcher creates a watcher for path. initial is the list currently in
// use; identical reloads are not reported.
func NewWatcher(path string, initial []job.Spec, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger,
		last:     initial,
	}
}

// Watch blocks until ctx is cancelled, calling onChange with the new job
// list after each change. The parent directory is watched so that editors
// replacing the file by rename are seen. A file that fails to parse is
// logged and the previous list stays in effect.
func (w *Watcher) Watch(ctx context.Context, onChange func([]job.Spec)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}

	w.logger.Info("watching job file", "path", w.path)

	var pending <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("job file change detected", "path", w.path, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			pending = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.logger.Warn("job file watch error", "path", w.path, "error", err)

		case <-pending:
			pending = nil
			w.reload(onChange)
		}
	}
}

func (w *Watcher) reload(onChange func([]job.Spec)) {
	specs, err := Load(w.path)
	if err != nil {
		w.logger.Error("job file reload failed, keeping previous jobs", "path", w.path, "error", err)
		return
	}

	if slices.Equal(specs, w.last) {
		w.logger.Debug("job file unchanged", "path", w.path)
		return
	}

	w.last = specs
	w.logger.Info("job file reloaded", "path", w.path, "jobs", len(specs))
	onChange(specs)
}
