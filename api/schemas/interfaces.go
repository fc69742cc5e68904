package schemas

import "context"

// ModelTier selects which configured model serves a request.
type ModelTier string

const (
	// TierFast is for cheap reformatting or query-generation calls.
	TierFast ModelTier = "fast"
	// TierPowerful is for the root-cause analysis itself.
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes a single completion request.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is the provider-independent completion request shape.
type GenerationRequest struct {
	Tier         ModelTier
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// GenerationResult bundles the completion text with its token accounting.
// Usage is zero when the backend did not report any.
type GenerationResult struct {
	Content string
	Usage   Usage
}

// LLMClient is the contract every model backend implements. Both methods
// issue exactly one completion request; the in-flight HTTP exchange is
// cancelled when ctx is done.
type LLMClient interface {
	// Generate performs a blocking completion.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	// GenerateStream performs a streaming completion, invoking emit for every
	// content fragment in arrival order before returning the final result.
	GenerateStream(ctx context.Context, req GenerationRequest, emit func(chunk string)) (*GenerationResult, error)
}

// Emitter is the presentation sink the pipeline forwards events to. Emit is
// fire-and-forget from the pipeline's perspective but preserves submission
// order.
type Emitter interface {
	Emit(kind EventKind, payload any)
}
