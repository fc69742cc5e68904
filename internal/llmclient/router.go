package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
)

// Router implements schemas.LLMClient and dispatches each request to the
// client configured for its tier.
type Router struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

// NewRouter creates a router with the specified clients for each tier.
func NewRouter(logger *zap.Logger, fast, powerful schemas.LLMClient) (*Router, error) {
	if fast == nil || powerful == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}
	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fast,
			schemas.TierPowerful: powerful,
		},
	}, nil
}

func (r *Router) pick(tier schemas.ModelTier) (schemas.LLMClient, error) {
	if tier == "" {
		tier = schemas.TierPowerful
	}
	client, ok := r.clients[tier]
	if !ok {
		return nil, fmt.Errorf("no LLM client configured for tier: %s", tier)
	}
	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client, nil
}

// Generate routes a blocking completion to the request's tier.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	client, err := r.pick(req.Tier)
	if err != nil {
		return nil, err
	}
	return client.Generate(ctx, req)
}

// GenerateStream routes a streaming completion to the request's tier.
func (r *Router) GenerateStream(ctx context.Context, req schemas.GenerationRequest, emit func(chunk string)) (*schemas.GenerationResult, error) {
	client, err := r.pick(req.Tier)
	if err != nil {
		return nil, err
	}
	return client.GenerateStream(ctx, req, emit)
}
