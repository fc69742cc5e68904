// Package logjuicer fetches log-anomaly reports from a logjuicer service.
package logjuicer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
	"github.com/buildsight/rca-cli/internal/report"
)

// Report creation statuses returned by the service.
const (
	statusPending   = "Pending"
	statusCompleted = "Completed"
)

// wsDone is the sentinel frame ending the progress feed; wsKeepalive frames
// carry no information.
const (
	wsDone      = "Done"
	wsKeepalive = "..."
)

// Client drives the three-step report fetch: request creation, follow the
// progress feed until the report settles, download and normalize.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *zap.Logger
}

// NewClient shares the session transport for the REST calls and derives a
// websocket dialer from it for the progress feed.
func NewClient(cfg config.LogJuicerConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		Jar:              httpClient.Jar,
	}
	if transport, ok := httpClient.Transport.(*http.Transport); ok && transport != nil {
		dialer.TLSClientConfig = transport.TLSClientConfig
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     logger.Named("logjuicer"),
	}
}

// Fetch produces the normalized error report for one build URL. Progress
// lines from the service are forwarded to emit; emit may be nil.
func (c *Client) Fetch(ctx context.Context, target string, emit schemas.Emitter) (schemas.Report, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("Requesting errors report", zap.String("target", target))
	reportID, status, err := c.createReport(ctx, target)
	if err != nil {
		return schemas.Report{}, err
	}
	if emit != nil {
		emit.Emit(schemas.EventProgress, fmt.Sprintf("%s/logjuicer/report/%d", c.baseURL, reportID))
	}

	switch status {
	case statusPending:
		c.logger.Info("Waiting for errors report", zap.Int("report_id", reportID))
		if err := c.waitReport(ctx, reportID, emit); err != nil {
			return schemas.Report{}, err
		}
	case statusCompleted:
	default:
		return schemas.Report{}, fmt.Errorf("%s: report creation failed: %s", target, status)
	}

	data, err := c.downloadReport(ctx, reportID)
	if err != nil {
		return schemas.Report{}, err
	}
	return report.Normalize(data)
}

// createReport asks the service to produce an errors report. The response is
// the 2-tuple [report_id, status].
func (c *Client) createReport(ctx context.Context, target string) (int, string, error) {
	createURL := fmt.Sprintf("%s/logjuicer/api/report/new?target=%s&errors=true",
		c.baseURL, url.QueryEscape(target))

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	var reportID int
	var status string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, createURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: report creation failed: %v", schemas.ErrTransport, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to read creation response: %v", schemas.ErrTransport, err)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%w: report creation status %d: %s", schemas.ErrTransport, resp.StatusCode, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		var tuple []json.RawMessage
		if err := json.Unmarshal(body, &tuple); err != nil || len(tuple) != 2 {
			return backoff.Permanent(fmt.Errorf("undecodable creation response: %s", body))
		}
		if err := json.Unmarshal(tuple[0], &reportID); err != nil {
			return backoff.Permanent(fmt.Errorf("undecodable report id: %s", tuple[0]))
		}
		if err := json.Unmarshal(tuple[1], &status); err != nil {
			return backoff.Permanent(fmt.Errorf("undecodable report status: %s", tuple[1]))
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return 0, "", err
	}
	return reportID, status, nil
}

// waitReport follows the websocket progress feed until the Done sentinel. A
// 404 on the upgrade means the report settled between creation and here.
func (c *Client) waitReport(ctx context.Context, reportID int, emit schemas.Emitter) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") +
		fmt.Sprintf("/logjuicer/wsapi/report/%d", reportID)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("%w: progress feed dial failed: %v", schemas.ErrTransport, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: progress feed failed: %v", schemas.ErrTransport, err)
		}
		switch line := string(message); line {
		case wsDone:
			return nil
		case wsKeepalive:
		default:
			if emit != nil {
				emit.Emit(schemas.EventProgress, line)
			} else {
				c.logger.Info("Report progress", zap.String("line", line))
			}
		}
	}
}

// downloadReport fetches the settled report document.
func (c *Client) downloadReport(ctx context.Context, reportID int) ([]byte, error) {
	reportURL := fmt.Sprintf("%s/logjuicer/api/report/%d/json", c.baseURL, reportID)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	var data []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: report download failed: %v", schemas.ErrTransport, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to read report: %v", schemas.ErrTransport, err)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%w: report download status %d", schemas.ErrTransport, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		data = body
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return data, nil
}
