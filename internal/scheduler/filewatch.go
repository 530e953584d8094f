package scheduler

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
)

// FileWatchObserver drives FileWatcher-triggered schedules by watching
// each schedule's configured path and calling scheduler.Notify on any
// filesystem event (spec.md §4.8: "not polled here; fired by their
// respective observers").
type FileWatchObserver struct {
	scheduler *Scheduler
	log       logger.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	paths   map[string]uuid.UUID // watched path -> schedule_id
}

// NewFileWatchObserver builds an observer bound to sched.
func NewFileWatchObserver(sched *Scheduler, log logger.Logger) (*FileWatchObserver, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatchObserver{scheduler: sched, log: log, watcher: w, paths: make(map[string]uuid.UUID)}, nil
}

// Watch registers path as the FileWatcher trigger source for scheduleID.
func (o *FileWatchObserver) Watch(path string, scheduleID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.watcher.Add(path); err != nil {
		return err
	}
	o.paths[path] = scheduleID
	return nil
}

// Unwatch removes path from observation.
func (o *FileWatchObserver) Unwatch(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.paths, path)
	return o.watcher.Remove(path)
}

// Run consumes fsnotify events until ctx is cancelled.
func (o *FileWatchObserver) Run(ctx context.Context) {
	defer o.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			o.mu.Lock()
			scheduleID, known := o.paths[event.Name]
			o.mu.Unlock()
			if known {
				o.scheduler.Notify(scheduleID)
			}
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			if o.log != nil {
				o.log.Warn("scheduler: file watcher error", "error", err)
			}
		}
	}
}
