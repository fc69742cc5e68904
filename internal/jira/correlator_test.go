package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*schemas.GenerationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLM) GenerateStream(ctx context.Context, req schemas.GenerationRequest, emit func(chunk string)) (*schemas.GenerationResult, error) {
	args := m.Called(ctx, req, emit)
	if res := args.Get(0); res != nil {
		return res.(*schemas.GenerationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// newCorrelator wires a correlator against a mock model and a test tracker.
func newCorrelator(t *testing.T, llm schemas.LLMClient, handler http.HandlerFunc) *Correlator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.JiraConfig{
		URL:        server.URL,
		Token:      "secret",
		Projects:   []string{"OSPCIX", "OSPRH"},
		MaxResults: 5,
	}
	logger := zaptest.NewLogger(t)
	return NewCorrelator(cfg,
		NewQueryGenerator(llm, logger),
		NewClient(cfg, server.Client(), logger),
		logger)
}

func refuseSearch(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Error("no search call expected")
	}
}

func TestCorrelate_EmptyRootCauseShortCircuits(t *testing.T) {
	llm := new(mockLLM)
	c := newCorrelator(t, llm, refuseSearch(t))

	assert.Empty(t, c.Correlate(context.Background(), "  "))
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCorrelate_EmptyGeneratedQueryShortCircuits(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResult{Content: `{"jql": "   "}`}, nil).Once()

	c := newCorrelator(t, llm, refuseSearch(t))
	assert.Empty(t, c.Correlate(context.Background(), "dns broke"))
	llm.AssertExpectations(t)
}

func TestCorrelate_GenerationFailureIsSwallowed(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(nil, schemas.ErrTransport).Once()

	c := newCorrelator(t, llm, refuseSearch(t))
	assert.Empty(t, c.Correlate(context.Background(), "dns broke"))
}

func TestCorrelate_SearchServerErrorIsSwallowed(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResult{Content: `{"jql": "text ~ \"dns\" ORDER BY updated DESC"}`}, nil).Once()

	c := newCorrelator(t, llm, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	assert.Empty(t, c.Correlate(context.Background(), "dns broke"))
}

func TestCorrelate_ZeroHits(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResult{Content: `{"jql": "text ~ \"dns\""}`}, nil).Once()

	c := newCorrelator(t, llm, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total": 0, "issues": []}`)
	})
	assert.Empty(t, c.Correlate(context.Background(), "dns broke"))
}

func TestCorrelate_ShapesHits(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast && req.UserPrompt == "cert-manager secrets not found"
	})).Return(&schemas.GenerationResult{
		Content: `{"jql": "text ~ \"cert-manager\" ORDER BY updated DESC"}`,
	}, nil).Once()

	var seenJQL, seenMax, seenFields, seenAuth string
	c := newCorrelator(t, llm, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		seenJQL = r.URL.Query().Get("jql")
		seenMax = r.URL.Query().Get("maxResults")
		seenFields = r.URL.Query().Get("fields")
		seenAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{
			"total": 2,
			"issues": [
				{"key": "OSPCIX-1234", "fields": {"summary": "cert-manager secret missing"}},
				{"key": "OSPRH-99", "fields": {"summary": "certificate rotation flake"}}
			]
		}`)
	})

	issues := c.Correlate(context.Background(), "cert-manager secrets not found")

	// The generated query runs under the mandatory project scope.
	assert.Equal(t, `project in (OSPCIX, OSPRH) AND text ~ "cert-manager" ORDER BY updated DESC`, seenJQL)
	assert.Equal(t, "5", seenMax)
	assert.Equal(t, "summary,status,priority,assignee", seenFields)
	assert.Equal(t, "Bearer secret", seenAuth)

	require.Len(t, issues, 2)
	assert.Equal(t, "OSPCIX-1234", issues[0].ID)
	assert.Equal(t, "cert-manager secret missing", issues[0].Summary)
	assert.True(t, len(issues[0].URL) > 0 && issues[0].URL[len(issues[0].URL)-len("/browse/OSPCIX-1234"):] == "/browse/OSPCIX-1234")
	llm.AssertExpectations(t)
}

func TestQueryGenerator_ParseFailure(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(&schemas.GenerationResult{Content: "not json at all"}, nil).Once()

	gen := NewQueryGenerator(llm, zaptest.NewLogger(t))
	_, err := gen.Generate(context.Background(), "dns broke")
	assert.ErrorIs(t, err, schemas.ErrParse)
}
