// Package watcher submits newly arrived media files for captioning. It watches
// a directory tree with fsnotify and waits for each file's size to stop
// changing before submitting, so half-copied files never enter a batch.
package watcher

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/library"
)

// Submitter enqueues one batch of paths. Satisfied by batch.Coordinator.
type Submitter interface {
	Submit(paths []string, opts batch.Options) (string, error)
}

type pendingFile struct {
	size     int64
	lastSeen time.Time
}

// Watcher follows a directory tree and submits stable new video files.
type Watcher struct {
	root      string
	submitter Submitter
	opts      batch.Options

	// settleFor is how long a file's size must hold still before submission.
	settleFor time.Duration
	pollEvery time.Duration

	mu      sync.Mutex
	pending map[string]pendingFile
}

func New(root string, submitter Submitter, opts batch.Options) *Watcher {
	return &Watcher{
		root:      root,
		submitter: submitter,
		opts:      opts,
		settleFor: 10 * time.Second,
		pollEvery: 5 * time.Second,
		pending:   make(map[string]pendingFile),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	log.Printf("[watcher] watching %s", w.root)

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watcher] %v", err)
		case <-ticker.C:
			w.flushStable()
		}
	}
}

// addTree registers the directory and every subdirectory. fsnotify watches are
// not recursive on their own.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("[watcher] skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			log.Printf("[watcher] watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			// New directory mid-copy: watch it and anything already inside.
			if err := w.addTree(fsw, ev.Name); err != nil {
				log.Printf("[watcher] watch %s: %v", ev.Name, err)
			}
		}
		return
	}
	if !library.IsVideo(ev.Name) {
		return
	}

	w.mu.Lock()
	w.pending[ev.Name] = pendingFile{size: info.Size(), lastSeen: time.Now()}
	w.mu.Unlock()
}

// flushStable submits every pending file whose size has held for settleFor.
func (w *Watcher) flushStable() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, p := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size {
			w.pending[path] = pendingFile{size: info.Size(), lastSeen: now}
			continue
		}
		if now.Sub(p.lastSeen) >= w.settleFor {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		id, err := w.submitter.Submit([]string{path}, w.opts)
		if err != nil {
			log.Printf("[watcher] submit %s: %v", path, err)
			continue
		}
		log.Printf("[watcher] submitted %s as batch %s", path, id)
	}
}
