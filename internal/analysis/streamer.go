// Package analysis drives the structured root-cause analysis call and
// exposes its outcome as an ordered event stream.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/llmutil"
)

// eventBuffer bounds the stream channel; the producer blocks once the
// consumer falls this far behind.
const eventBuffer = 8

// Streamer issues one structured-output completion per Analyze call and
// emits the outcome as a finite, ordered event sequence: at most one report
// event, then optional markdown chunk events, then at most one usage event.
type Streamer struct {
	client         schemas.LLMClient
	logger         *zap.Logger
	renderMarkdown bool
}

// NewStreamer creates a streamer. When renderMarkdown is set, each validated
// analysis is additionally reformatted by a fast-tier pass whose fragments
// surface as chunk events.
func NewStreamer(client schemas.LLMClient, logger *zap.Logger, renderMarkdown bool) *Streamer {
	return &Streamer{
		client:         client,
		logger:         logger.Named("analysis"),
		renderMarkdown: renderMarkdown,
	}
}

// Stream is the consumer handle of one analysis call. Events must be drained
// until the channel closes; Err is valid afterwards. Abandoning the stream is
// done by cancelling the context passed to Analyze, which also cancels the
// in-flight model request. Events already emitted are never retracted.
type Stream struct {
	events chan schemas.Event
	err    error
}

// Events returns the ordered event sequence. The channel closes when the
// call settles, successfully or not.
func (s *Stream) Events() <-chan schemas.Event {
	return s.events
}

// Err reports how the call settled. It must only be consulted after Events
// is closed.
func (s *Stream) Err() error {
	return s.err
}

// Analyze starts one analysis over the given prompt and returns immediately
// with the event stream. The single completion request is the only
// suspension point; no retry happens here.
func (s *Streamer) Analyze(ctx context.Context, prompt string) *Stream {
	st := &Stream{events: make(chan schemas.Event, eventBuffer)}
	go s.run(ctx, prompt, st)
	return st
}

func (s *Streamer) run(ctx context.Context, prompt string, st *Stream) {
	defer close(st.events)

	result, err := s.client.Generate(ctx, schemas.GenerationRequest{
		Tier:         schemas.TierPowerful,
		SystemPrompt: SystemPrompt,
		UserPrompt:   prompt,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		st.err = err
		return
	}
	usage := result.Usage

	verdict, err := llmutil.ParseJSONObject[schemas.StructuredAnalysis](result.Content)
	if err != nil {
		st.err = fmt.Errorf("%w: %v", schemas.ErrParse, err)
		return
	}
	if err := verdict.Validate(); err != nil {
		// A present but schema-invalid response is surfaced, not skipped.
		st.err = err
		return
	}

	if !s.send(ctx, st, schemas.Event{Kind: schemas.EventReport, Payload: *verdict}) {
		return
	}

	if s.renderMarkdown {
		renderUsage, err := s.render(ctx, st, *verdict)
		if err != nil {
			// The verdict already went out; losing the rendering is not worth
			// failing the call over, unless the consumer went away.
			if ctx.Err() != nil {
				st.err = ctx.Err()
				return
			}
			s.logger.Warn("Markdown rendering pass failed", zap.Error(err))
		}
		usage.Add(renderUsage)
	}

	if !usage.Zero() {
		s.send(ctx, st, schemas.Event{Kind: schemas.EventUsage, Payload: usage})
	}
}

// render runs the reformatting pass over the validated verdict, forwarding
// every fragment as a chunk event.
func (s *Streamer) render(ctx context.Context, st *Stream, verdict schemas.StructuredAnalysis) (schemas.Usage, error) {
	input, err := json.Marshal(verdict)
	if err != nil {
		return schemas.Usage{}, err
	}

	result, err := s.client.GenerateStream(ctx, schemas.GenerationRequest{
		Tier:         schemas.TierFast,
		SystemPrompt: renderSystemPrompt,
		UserPrompt:   string(input),
	}, func(chunk string) {
		s.send(ctx, st, schemas.Event{Kind: schemas.EventChunk, Payload: chunk})
	})
	if err != nil {
		return schemas.Usage{}, err
	}
	return result.Usage, nil
}

// send delivers an event unless the consumer abandoned the stream.
func (s *Streamer) send(ctx context.Context, st *Stream, ev schemas.Event) bool {
	select {
	case st.events <- ev:
		return true
	case <-ctx.Done():
		st.err = ctx.Err()
		return false
	}
}
