package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher drives SIGHUP-equivalent live reload of a single file (the
// config file or the securenets file) by watching it with fsnotify and
// invoking onChange whenever it is written or atomically replaced
// (spec.md §5 "Cancellation" mentions live securenets reload; this follows
// the teacher's `logs.go` fsnotify.Watcher usage).
type Watcher struct {
	w        *fsnotify.Watcher
	path     string
	onChange func()
	log      *slog.Logger
	done     chan struct{}
}

// WatchFile starts watching path in the background and calls onChange on
// every Write or Create event (editors and config-management tools both
// replace files via rename, which fsnotify surfaces as Create on the new
// inode plus Remove on the watch target -- both are treated as "changed").
func WatchFile(path string, log *slog.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	wt := &Watcher{w: fw, path: path, onChange: onChange, log: log, done: make(chan struct{})}
	go wt.run()
	return wt, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.onChange()
			}
			if event.Op&fsnotify.Remove != 0 {
				// Editors/atomic writers often rename the old file away;
				// re-add the watch once the new file lands.
				if err := w.w.Add(w.path); err == nil {
					w.onChange()
				}
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("config watcher error", "path", w.path, "error", err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.w.Close()
}
