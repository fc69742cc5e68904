package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/pipeline"
	"github.com/buildsight/rca-cli/internal/worker"
)

// Runner is the pipeline entry point the job drives.
type Runner interface {
	Run(ctx context.Context, target string, emit schemas.Emitter) (*pipeline.Artifact, error)
}

// ReportStore persists settled job histories. A nil store disables
// persistence.
type ReportStore interface {
	GetReport(ctx context.Context, workflow, build string) ([]schemas.Event, error)
	SetReport(ctx context.Context, workflow, build string, events []schemas.Event) error
}

const persistTimeout = 10 * time.Second

// RCAJob analyzes one build URL under a worker and persists the settled
// history.
type RCAJob struct {
	runner   Runner
	store    ReportStore
	workflow string
	target   string
	logger   *zap.Logger
}

func NewRCAJob(runner Runner, store ReportStore, workflow, target string, logger *zap.Logger) *RCAJob {
	return &RCAJob{
		runner:   runner,
		store:    store,
		workflow: workflow,
		target:   target,
		logger:   logger.Named("job"),
	}
}

func jobKey(workflow, target string) string {
	return workflow + "-" + target
}

func (j *RCAJob) Key() string {
	return jobKey(j.workflow, j.target)
}

// Run executes the pipeline and always settles with one status event. The
// failure is recorded in the history rather than raised; watchers learn the
// outcome from the status payload.
func (j *RCAJob) Run(ctx context.Context, w *worker.Worker) {
	if _, err := j.runner.Run(ctx, j.target, w); err != nil {
		j.logger.Error("Job failed",
			zap.String("target", j.target),
			zap.Error(err),
		)
		w.Emit(schemas.EventStatus, fmt.Sprintf("Analysis failed: %v", err))
	} else {
		w.Emit(schemas.EventStatus, "completed")
	}

	if j.store == nil {
		return
	}
	// Progress lines are transient; the stored history keeps only the
	// durable events.
	events := make([]schemas.Event, 0, len(w.History()))
	for _, ev := range w.History() {
		if ev.Kind == schemas.EventProgress {
			continue
		}
		events = append(events, ev)
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := j.store.SetReport(persistCtx, j.workflow, j.target, events); err != nil {
		j.logger.Error("Failed to persist job history",
			zap.String("target", j.target),
			zap.Error(err),
		)
	}
}
