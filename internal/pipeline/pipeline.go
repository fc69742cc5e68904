// Package pipeline sequences one root-cause analysis request end to end:
// fetch the error report, order it, analyze it, correlate the verdict with
// known tracker issues.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/analysis"
	"github.com/buildsight/rca-cli/internal/report"
)

// Fetcher produces the normalized error report for a build URL, forwarding
// fetch progress to emit.
type Fetcher interface {
	Fetch(ctx context.Context, target string, emit schemas.Emitter) (schemas.Report, error)
}

// Correlator maps a root cause to related tracker issues; best effort.
type Correlator interface {
	Correlate(ctx context.Context, rootCause string) []schemas.CorrelatedIssue
}

// Artifact is the terminal result of one request. JiraIssues is omitted from
// the encoding, not empty, when correlation was skipped or found nothing.
type Artifact struct {
	schemas.StructuredAnalysis
	JiraIssues []schemas.CorrelatedIssue `json:"jira_issues,omitempty"`
}

// Pipeline owns the per-request sequencing. A nil correlator disables the
// correlation phase entirely.
type Pipeline struct {
	fetcher    Fetcher
	streamer   *analysis.Streamer
	correlator Correlator
	logger     *zap.Logger
}

func New(fetcher Fetcher, streamer *analysis.Streamer, correlator Correlator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		streamer:   streamer,
		correlator: correlator,
		logger:     logger.Named("pipeline"),
	}
}

// Run executes the whole pipeline for one build URL. Progress, chunk and
// usage events are forwarded to emit as they happen; the terminal artifact
// goes out last as one report event. An analysis failure fails the request
// with no partial artifact.
func (p *Pipeline) Run(ctx context.Context, target string, emit schemas.Emitter) (*Artifact, error) {
	emit.Emit(schemas.EventProgress, "Fetching build errors...")
	rep, err := p.fetcher.Fetch(ctx, target, emit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch error report: %w", err)
	}
	return p.RunReport(ctx, rep, emit)
}

// RunReport runs the analysis phases over an already-fetched report.
func (p *Pipeline) RunReport(ctx context.Context, rep schemas.Report, emit schemas.Emitter) (*Artifact, error) {
	report.Sort(&rep)
	prompt := report.Prompt(rep)
	if prompt == "" {
		return nil, fmt.Errorf("no anomalies found for %s", rep.Target)
	}

	index := report.NewIndex(rep)
	total := 0
	for _, n := range index.Counts() {
		total += n
	}
	emit.Emit(schemas.EventProgress, fmt.Sprintf("Analyzing %d anomalies across %d files for %s...",
		total, len(index.Sources()), rep.Target))

	stream := p.streamer.Analyze(ctx, prompt)
	var verdict *schemas.StructuredAnalysis
	for ev := range stream.Events() {
		switch ev.Kind {
		case schemas.EventReport:
			// Held back; the artifact goes out once correlation settled.
			v := ev.Payload.(schemas.StructuredAnalysis)
			verdict = &v
		default:
			emit.Emit(ev.Kind, ev.Payload)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	if verdict == nil {
		return nil, fmt.Errorf("analysis settled without a verdict")
	}

	artifact := &Artifact{StructuredAnalysis: *verdict}
	if p.correlator != nil {
		emit.Emit(schemas.EventProgress, "Correlating with known issues...")
		if issues := p.correlator.Correlate(ctx, verdict.RootCause); len(issues) > 0 {
			artifact.JiraIssues = issues
		}
	}

	emit.Emit(schemas.EventReport, *artifact)
	p.logger.Info("Pipeline settled",
		zap.String("target", rep.Target),
		zap.Int("jira_issues", len(artifact.JiraIssues)),
	)
	return artifact, nil
}
