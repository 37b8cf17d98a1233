// Package notify watches the pipeline profile on disk so a running daemon
// can pick up processor changes without a restart.
package notify

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the event bursts editors produce when saving.
const debounceDelay = 200 * time.Millisecond

// ProfileWatcher watches one profile file and invokes a callback after it
// changes. The parent directory is watched rather than the file itself,
// because most editors replace files via rename.
type ProfileWatcher struct {
	path     string
	callback func()
	watcher  *fsnotify.Watcher
	done     chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
}

// NewProfileWatcher creates a watcher for the given profile path. Call
// Start to begin watching and Stop to clean up.
func NewProfileWatcher(path string, callback func()) *ProfileWatcher {
	return &ProfileWatcher{
		path:     path,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching the profile's directory.
func (pw *ProfileWatcher) Start() error {
	abs, err := filepath.Abs(pw.path)
	if err != nil {
		return err
	}
	pw.path = abs

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}
	pw.watcher = w

	go pw.loop()
	log.Printf("notify: watching %s for profile changes", abs)
	return nil
}

// Stop shuts down the watcher. Safe to call when Start failed or was never
// called.
func (pw *ProfileWatcher) Stop() {
	if pw.watcher == nil {
		return
	}
	_ = pw.watcher.Close()
	<-pw.done

	pw.mu.Lock()
	if pw.debounce != nil {
		pw.debounce.Stop()
	}
	pw.mu.Unlock()
}

func (pw *ProfileWatcher) loop() {
	defer close(pw.done)
	for {
		select {
		case evt, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if evt.Name != pw.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pw.scheduleCallback()
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// scheduleCallback arms the debounce timer, replacing any pending one.
func (pw *ProfileWatcher) scheduleCallback() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.debounce != nil {
		pw.debounce.Stop()
	}
	pw.debounce = time.AfterFunc(debounceDelay, pw.callback)
}
