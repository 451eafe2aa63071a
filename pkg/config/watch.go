package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch invokes onChange whenever path is written or renamed-over (the way
// editors and `scp` replace a config file). It is a development convenience
// for reloading a job or NodeSetting file without restarting the process —
// not a mid-run hot-reload path for an in-progress composition (spec.md §1
// non-goal: "persistent state across server restarts" implies config
// changes never retroactively affect a running composition). The returned
// function stops the watch.
func Watch(path string, onChange func()) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
