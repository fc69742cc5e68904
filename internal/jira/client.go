// Package jira correlates a root-cause verdict with existing tracker tickets.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

// searchFields is the fixed projection requested from the search endpoint.
const searchFields = "summary,status,priority,assignee"

// Client is a thin wrapper over the tracker search REST endpoint.
type Client struct {
	baseURL    string
	token      string
	maxResults int
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a search client from the jira configuration, sharing the
// request-scoped HTTP transport.
func NewClient(cfg config.JiraConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		logger:     logger.Named("jira"),
	}
}

// SearchResult is the subset of the search response the pipeline consumes.
type SearchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

// Issue is one raw search hit.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

// Search executes a JQL query with the configured result cap and field
// projection.
func (c *Client) Search(ctx context.Context, jql string) (*SearchResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("fields", searchFields)

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: jira search failed: %v", schemas.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read jira response: %v", schemas.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Jira API returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return nil, fmt.Errorf("%w: jira API status %d", schemas.ErrTransport, resp.StatusCode)
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("undecodable jira search response: %w", err)
	}
	return &result, nil
}

// BrowseURL returns the user-facing link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}
