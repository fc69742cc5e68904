package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient talks to one named Gemini model over the generateContent API.
// It shares the request-scoped HTTP transport and never retries internally;
// retry policy belongs to the caller.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.LLMModelConfig
}

// -- Gemini API request/response wire structures --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes a client for one model tier. The HTTP client is
// the shared per-request transport owned by the session.
func NewGeminiClient(cfg config.LLMModelConfig, apiKey string, httpClient *http.Client, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	base := cfg.Endpoint
	if base == "" {
		base = defaultGeminiBase
	}

	return &GeminiClient{
		apiKey:     apiKey,
		endpoint:   fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), cfg.Model),
		httpClient: httpClient,
		logger:     logger.Named("llm_client.gemini").With(zap.String("model", cfg.Model)),
		cfg:        cfg,
	}, nil
}

// Generate issues one blocking completion request.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, c.endpoint+":generateContent", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gemini response: %v", schemas.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, respBody)
	}

	var payload geminiResponsePayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable gemini response envelope: %v", schemas.ErrTransport, err)
	}

	text, err := c.candidateText(payload)
	if err != nil {
		return nil, err
	}

	result := &schemas.GenerationResult{
		Content: text,
		Usage: schemas.Usage{
			Input:  payload.UsageMetadata.PromptTokenCount,
			Output: payload.UsageMetadata.CandidatesTokenCount,
		},
	}
	c.logger.Info("LLM generation complete",
		zap.Int("input_tokens", result.Usage.Input),
		zap.Int("output_tokens", result.Usage.Output),
	)
	return result, nil
}

// GenerateStream issues one streaming completion request over the SSE variant
// of the API, invoking emit for every content fragment in arrival order.
func (c *GeminiClient) GenerateStream(ctx context.Context, req schemas.GenerationRequest, emit func(chunk string)) (*schemas.GenerationResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, c.endpoint+":streamGenerateContent?alt=sse", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, c.apiError(resp.StatusCode, respBody)
	}

	var content strings.Builder
	var usage schemas.Usage

	scanner := bufio.NewScanner(resp.Body)
	// Individual SSE data lines can carry multi-kilobyte fragments.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var payload geminiResponsePayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("%w: undecodable gemini stream frame: %v", schemas.ErrTransport, err)
		}
		for _, cand := range payload.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				content.WriteString(part.Text)
				emit(part.Text)
			}
		}
		// Usage metadata grows as the stream progresses; the final frame wins.
		if payload.UsageMetadata.PromptTokenCount > 0 || payload.UsageMetadata.CandidatesTokenCount > 0 {
			usage = schemas.Usage{
				Input:  payload.UsageMetadata.PromptTokenCount,
				Output: payload.UsageMetadata.CandidatesTokenCount,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: gemini stream interrupted: %v", schemas.ErrTransport, err)
	}

	return &schemas.GenerationResult{Content: content.String(), Usage: usage}, nil
}

func (c *GeminiClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.APITimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.APITimeout)
	}
	return context.WithCancel(ctx)
}

func (c *GeminiClient) post(ctx context.Context, url string, req schemas.GenerationRequest) (*http.Response, error) {
	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini request failed: %v", schemas.ErrTransport, err)
	}
	c.logger.Debug("Gemini request dispatched", zap.Duration("first_response", time.Since(start)))
	return resp, nil
}

func (c *GeminiClient) buildPayload(req schemas.GenerationRequest) geminiRequestPayload {
	genConfig := geminiGenerationConfig{
		Temperature:     float64(req.Options.Temperature),
		MaxOutputTokens: c.cfg.MaxTokens,
	}
	if genConfig.Temperature == 0 {
		genConfig.Temperature = float64(c.cfg.Temperature)
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMimeType = "application/json"
	}

	payload := geminiRequestPayload{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.UserPrompt}},
		}},
		GenerationConfig: genConfig,
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiSystemInstruction{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}
	return payload
}

func (c *GeminiClient) candidateText(payload geminiResponsePayload) (string, error) {
	if len(payload.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini API returned no candidates", schemas.ErrTransport)
	}
	candidate := payload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: gemini API returned empty content parts (reason: %s)",
			schemas.ErrTransport, candidate.FinishReason)
	}
	return candidate.Content.Parts[0].Text, nil
}

func (c *GeminiClient) apiError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status",
		zap.Int("status", statusCode),
		zap.ByteString("response", body),
	)
	return fmt.Errorf("%w: gemini API status %d: %s", schemas.ErrTransport, statusCode, body)
}
