// Package worker provides the pub/sub layer between running analysis jobs
// and their watchers. A Worker records every emitted event and replays the
// full history to late subscribers; a Pool runs jobs on a fixed set of
// goroutines, de-duplicating submissions by job key.
package worker

import (
	"sync"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Worker is the event sink handed to a running job. It satisfies
// schemas.Emitter.
type Worker struct {
	mu       sync.Mutex
	history  []schemas.Event
	watchers []*Watcher
	closed   bool
}

// New returns an open worker with no watchers.
func New() *Worker {
	return &Worker{}
}

// Emit records the event and fans it out to every live watcher. Emitting on
// a closed worker is a no-op.
func (w *Worker) Emit(kind schemas.EventKind, payload any) {
	ev := schemas.Event{Kind: kind, Payload: payload}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.history = append(w.history, ev)
	for _, watcher := range w.watchers {
		watcher.enqueue(ev)
	}
}

// Watch subscribes to the worker's feed. The watcher first receives every
// event emitted so far, then live events. Watching a closed worker yields
// the history followed by the end of the feed.
func (w *Worker) Watch() *Watcher {
	watcher := newWatcher()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ev := range w.history {
		watcher.enqueue(ev)
	}
	if w.closed {
		watcher.finish()
		return watcher
	}
	w.watchers = append(w.watchers, watcher)
	return watcher
}

// History returns a copy of every event emitted so far.
func (w *Worker) History() []schemas.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]schemas.Event, len(w.history))
	copy(out, w.history)
	return out
}

// Close ends the feed. Every watcher's channel closes once its queue drains.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, watcher := range w.watchers {
		watcher.finish()
	}
	w.watchers = nil
}
