// Package watcher implements spec.md §4.8's watcher bridge: a minimal
// watch/unwatch/events interface the orchestrator uses in watch mode to
// reconcile the watched set against successive module tables by set
// difference.
package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// EventKind distinguishes the filesystem event kinds the bridge surfaces.
type EventKind uint8

const (
	EventModified EventKind = iota
	EventRemoved
	EventError
)

// Event is one filesystem notification.
type Event struct {
	Path string
	Kind EventKind
	Err  error // set iff Kind == EventError
}

// Bridge is the minimal interface spec.md §4.8 specifies.
type Bridge interface {
	Watch(path string) error
	Unwatch(path string) error
	Events() <-chan Event
	Close() error
}

// FsnotifyBridge is a Bridge backed by fsnotify, watching individual
// files rather than whole directories so the watched set can be
// reconciled one path at a time against successive module tables.
type FsnotifyBridge struct {
	watcher *fsnotify.Watcher
	events  chan Event
}

// New creates an FsnotifyBridge. The caller must call Close when done.
func New() (*FsnotifyBridge, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	b := &FsnotifyBridge{watcher: w, events: make(chan Event, 64)}
	go b.pump()
	return b, nil
}

func (b *FsnotifyBridge) pump() {
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				close(b.events)
				return
			}
			b.events <- translate(ev)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				continue
			}
			b.events <- Event{Kind: EventError, Err: err}
		}
	}
}

func translate(ev fsnotify.Event) Event {
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		return Event{Path: ev.Name, Kind: EventRemoved}
	}
	return Event{Path: ev.Name, Kind: EventModified}
}

// Watch adds path to the watched set. Watching an already-watched path
// is a no-op (fsnotify itself de-duplicates).
func (b *FsnotifyBridge) Watch(path string) error {
	return b.watcher.Add(path)
}

// Unwatch removes path from the watched set. Unwatching a path that was
// never watched, or was already removed, is not an error.
func (b *FsnotifyBridge) Unwatch(path string) error {
	_ = b.watcher.Remove(path)
	return nil
}

// Events returns the bridge's event stream.
func (b *FsnotifyBridge) Events() <-chan Event {
	return b.events
}

// Close stops watching and releases the underlying OS resources.
func (b *FsnotifyBridge) Close() error {
	return b.watcher.Close()
}

// Reconcile computes the set differences spec.md §4.8 describes between
// an old and new watched set of canonical paths: paths to newly watch
// and paths to unwatch, so the caller (the orchestrator) can apply both
// against a Bridge after a successful re-bundle.
func Reconcile(oldSet, newSet map[string]bool) (toWatch, toUnwatch []string) {
	for p := range newSet {
		if !oldSet[p] {
			toWatch = append(toWatch, p)
		}
	}
	for p := range oldSet {
		if !newSet[p] {
			toUnwatch = append(toUnwatch, p)
		}
	}
	return toWatch, toUnwatch
}
