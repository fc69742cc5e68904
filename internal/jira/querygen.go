package jira

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/llmutil"
)

// jqlSystemPrompt constrains the model to a single structured jql field with
// contains-semantics over the text fields, most recent issues first.
const jqlSystemPrompt = `You are an expert assistant that converts the root cause of a CI build
failure into a precise Jira Query Language (JQL) string, in order to find
existing Jira tickets that may be related to this failure.

Follow these rules:
1. Identify the key information in the provided root cause: specific error
   messages, failing components or services, technologies or libraries
   involved, any mentioned hostnames or infrastructure details.
2. Construct a JQL query searching for this information in the summary,
   description and comment fields.
3. Use the ~ (CONTAINS) operator for all text searches to allow partial
   matches. Combine terms with AND or OR where appropriate.
4. Prioritize recent issues by ending the query with ORDER BY updated DESC.
5. Respond with a JSON object of the form {"jql": "<query>"} and nothing else.`

// QueryGenerator turns a free-text root cause into a JQL query via one
// fast-tier structured completion.
type QueryGenerator struct {
	client schemas.LLMClient
	logger *zap.Logger
}

// NewQueryGenerator creates a generator on the given model client.
func NewQueryGenerator(client schemas.LLMClient, logger *zap.Logger) *QueryGenerator {
	return &QueryGenerator{
		client: client,
		logger: logger.Named("jira.querygen"),
	}
}

// Generate produces the JQL string for a root cause. An empty result with a
// nil error means the model answered but produced nothing usable.
func (g *QueryGenerator) Generate(ctx context.Context, rootCause string) (string, error) {
	result, err := g.client.Generate(ctx, schemas.GenerationRequest{
		Tier:         schemas.TierFast,
		SystemPrompt: jqlSystemPrompt,
		UserPrompt:   rootCause,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return "", err
	}

	query, err := llmutil.ParseJSONObject[schemas.GeneratedQuery](result.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schemas.ErrParse, err)
	}
	if query.Empty() {
		return "", nil
	}
	g.logger.Info("Generated JQL", zap.String("jql", query.JQL))
	return query.JQL, nil
}
