package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Job is a unit of work the pool can run. Key de-duplicates submissions; two
// jobs with the same key share one execution and one event feed.
type Job interface {
	Key() string
	Run(ctx context.Context, w *Worker)
}

// Status reports where a submitted job stands.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

type queuedJob struct {
	worker *Worker
	job    Job
}

// Pool runs jobs on a fixed number of goroutines and keeps the event history
// of settled jobs for replay.
type Pool struct {
	queue  chan queuedJob
	logger *zap.Logger

	mu        sync.Mutex
	pending   map[string]*Worker
	completed map[string][]schemas.Event

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewPool starts size worker goroutines draining a submit queue of depth
// queueSize. Close stops them.
func NewPool(ctx context.Context, size, queueSize int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		queue:     make(chan queuedJob, queueSize),
		logger:    logger.Named("pool"),
		pending:   make(map[string]*Worker),
		completed: make(map[string][]schemas.Event),
		cancel:    cancel,
	}
	for i := 0; i < size; i++ {
		group.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
	p.group = group
	return p
}

// Submit enqueues the job unless one with the same key already ran or is
// running.
func (p *Pool) Submit(job Job) Status {
	key := job.Key()

	p.mu.Lock()
	if _, ok := p.completed[key]; ok {
		p.mu.Unlock()
		return StatusCompleted
	}
	if _, ok := p.pending[key]; ok {
		p.mu.Unlock()
		return StatusPending
	}
	qj := queuedJob{worker: New(), job: job}
	p.pending[key] = qj.worker
	p.mu.Unlock()

	p.queue <- qj
	p.logger.Info("Job queued", zap.String("key", key))
	return StatusPending
}

// Watch subscribes to a pending job's feed, or returns nil when no job with
// that key is pending.
func (p *Pool) Watch(key string) *Watcher {
	p.mu.Lock()
	w, ok := p.pending[key]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return w.Watch()
}

// Completed returns the recorded event history of a settled job.
func (p *Pool) Completed(key string) ([]schemas.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events, ok := p.completed[key]
	return events, ok
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-p.queue:
			key := qj.job.Key()
			p.logger.Info("Job started", zap.String("key", key))
			qj.job.Run(ctx, qj.worker)
			qj.worker.Close()

			p.mu.Lock()
			p.completed[key] = qj.worker.History()
			delete(p.pending, key)
			p.mu.Unlock()
			p.logger.Info("Job settled", zap.String("key", key))
		}
	}
}

// Close stops the worker goroutines and waits for the in-flight jobs to
// observe the cancellation.
func (p *Pool) Close() error {
	p.cancel()
	return p.group.Wait()
}
