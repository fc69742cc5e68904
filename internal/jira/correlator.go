package jira

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

// Correlator runs the two-phase issue correlation: generate a JQL query from
// the root cause, then search the tracker under the mandatory project scope.
//
// Correlation is best effort. Every failure on this path is swallowed to an
// empty result and logged; a missing correlation must never take down a
// successful root-cause analysis.
type Correlator struct {
	gen      *QueryGenerator
	client   *Client
	projects []string
	logger   *zap.Logger
}

// NewCorrelator wires the generator and search client together.
func NewCorrelator(cfg config.JiraConfig, gen *QueryGenerator, client *Client, logger *zap.Logger) *Correlator {
	return &Correlator{
		gen:      gen,
		client:   client,
		projects: cfg.Projects,
		logger:   logger.Named("jira.correlator"),
	}
}

// Correlate maps a root cause to related tracker issues. A zero-hit search
// and a failed search both yield an empty result; they differ only in the
// log message.
func (c *Correlator) Correlate(ctx context.Context, rootCause string) []schemas.CorrelatedIssue {
	if strings.TrimSpace(rootCause) == "" {
		c.logger.Info("No root cause to correlate, skipping issue search")
		return nil
	}

	jql, err := c.gen.Generate(ctx, rootCause)
	if err != nil {
		c.logger.Error("Failed to generate JQL from root cause", zap.Error(err))
		return nil
	}
	if jql == "" {
		c.logger.Warn("Model returned an empty JQL query, skipping issue search")
		return nil
	}

	scoped := fmt.Sprintf("project in (%s) AND %s", strings.Join(c.projects, ", "), jql)
	c.logger.Info("Searching tracker", zap.String("jql", scoped))

	result, err := c.client.Search(ctx, scoped)
	if err != nil {
		c.logger.Error("Issue search failed", zap.Error(err))
		return nil
	}
	if result.Total == 0 {
		c.logger.Info("No related issues found")
		return nil
	}

	issues := make([]schemas.CorrelatedIssue, 0, len(result.Issues))
	for _, hit := range result.Issues {
		issues = append(issues, schemas.CorrelatedIssue{
			ID:      hit.Key,
			Summary: hit.Fields.Summary,
			URL:     c.client.BrowseURL(hit.Key),
		})
	}
	return issues
}
