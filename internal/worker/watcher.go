package worker

import (
	"sync"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Watcher is one subscription to a worker's event feed. Events arrive on
// Events() in emission order, history first, and the channel closes once the
// worker settles. The queue between the worker and the consumer is unbounded
// so a slow consumer never blocks the job.
type Watcher struct {
	mu      sync.Mutex
	pending []schemas.Event
	done    bool
	wake    chan struct{}

	out     chan schemas.Event
	stop    chan struct{}
	stopOne sync.Once
}

func newWatcher() *Watcher {
	w := &Watcher{
		wake: make(chan struct{}, 1),
		out:  make(chan schemas.Event),
		stop: make(chan struct{}),
	}
	go w.pump()
	return w
}

// Events returns the subscription channel. It is closed after the last event
// once the worker has settled, or after Close.
func (w *Watcher) Events() <-chan schemas.Event {
	return w.out
}

// Close abandons the subscription. Safe to call more than once; pending
// events are discarded.
func (w *Watcher) Close() {
	w.stopOne.Do(func() { close(w.stop) })
}

// enqueue appends one event to the delivery queue.
func (w *Watcher) enqueue(ev schemas.Event) {
	w.mu.Lock()
	w.pending = append(w.pending, ev)
	w.mu.Unlock()
	w.signal()
}

// finish marks the end of the feed; the pump closes out after draining.
func (w *Watcher) finish() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
	w.signal()
}

func (w *Watcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) pump() {
	defer close(w.out)
	for {
		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		done := w.done
		w.mu.Unlock()

		for _, ev := range batch {
			select {
			case w.out <- ev:
			case <-w.stop:
				return
			}
		}
		if done {
			return
		}
		select {
		case <-w.wake:
		case <-w.stop:
			return
		}
	}
}
