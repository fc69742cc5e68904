package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
	"github.com/buildsight/rca-cli/internal/pipeline"
	"github.com/buildsight/rca-cli/internal/worker"
)

type fakeRunner struct {
	block chan struct{}
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, target string, emit schemas.Emitter) (*pipeline.Artifact, error) {
	emit.Emit(schemas.EventProgress, "working on "+target)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	artifact := &pipeline.Artifact{StructuredAnalysis: schemas.StructuredAnalysis{
		Summary:      "s",
		RootCause:    "rc",
		FailedStep:   "fs",
		LogEvidence:  "le",
		SuggestedFix: "sf",
	}}
	emit.Emit(schemas.EventReport, *artifact)
	return artifact, nil
}

type fakeStore struct {
	mu      sync.Mutex
	reports map[string][]schemas.Event
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[string][]schemas.Event)}
}

func (f *fakeStore) GetReport(ctx context.Context, workflow, build string) ([]schemas.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.reports[workflow+"-"+build], nil
}

func (f *fakeStore) SetReport(ctx context.Context, workflow, build string, events []schemas.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[workflow+"-"+build] = events
	return nil
}

func (f *fakeStore) stored(workflow, build string) []schemas.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[workflow+"-"+build]
}

func newTestServer(t *testing.T, runner Runner, store ReportStore) (*Server, *worker.Pool) {
	t.Helper()
	pool := worker.NewPool(context.Background(), 2, 16, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, pool.Close()) })

	s := NewServer(config.ServerConfig{Addr: ":0"}, runner, store, pool, zaptest.NewLogger(t))
	return s, pool
}

func TestSubmit_MissingTarget(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/report", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_QueuesAndPersists(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestServer(t, &fakeRunner{}, store)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/report?target=https://zuul/build/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "PENDING", status.Status)

	deadline := time.Now().Add(2 * time.Second)
	for store.stored(DefaultWorkflow, "https://zuul/build/1") == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Progress events are stripped from the persisted history.
	events := store.stored(DefaultWorkflow, "https://zuul/build/1")
	require.Len(t, events, 2)
	assert.Equal(t, schemas.EventReport, events[0].Kind)
	assert.Equal(t, schemas.EventStatus, events[1].Kind)
	assert.Equal(t, "completed", events[1].Payload)
}

func TestSubmit_FailedJobSettlesWithFailureStatus(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestServer(t, &fakeRunner{err: errors.New("model unreachable")}, store)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/report?target=https://zuul/build/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	deadline := time.Now().Add(2 * time.Second)
	for store.stored(DefaultWorkflow, "https://zuul/build/1") == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	events := store.stored(DefaultWorkflow, "https://zuul/build/1")
	require.Len(t, events, 1)
	assert.Equal(t, schemas.EventStatus, events[0].Kind)
	assert.Contains(t, events[0].Payload, "Analysis failed")
}

func TestSubmit_ReplaysStoredHistory(t *testing.T) {
	store := newFakeStore()
	stored := []schemas.Event{{Kind: schemas.EventStatus, Payload: "completed"}}
	require.NoError(t, store.SetReport(context.Background(), DefaultWorkflow, "https://zuul/build/1", stored))

	s, _ := newTestServer(t, &fakeRunner{}, store)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/report?target=https://zuul/build/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[["completed","status"]]`, rec.Body.String())
}

func TestGet_UnknownBuild(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, newFakeStore())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report?target=https://zuul/build/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatch_SettledBuildRedirects(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/watch?target=https://zuul/build/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `data: [true,"redirect"]`)
}

func TestWatch_StreamsUntilStatus(t *testing.T) {
	block := make(chan struct{})
	s, pool := newTestServer(t, &fakeRunner{block: block}, nil)

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/report?target=https://zuul/build/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	// Wait until the job is pending before watching.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w := pool.Watch(jobKey(DefaultWorkflow, "https://zuul/build/1")); w != nil {
			w.Close()
			break
		}
		time.Sleep(time.Millisecond)
	}

	watchResp, err := http.Get(server.URL + "/api/report/watch?target=https://zuul/build/1")
	require.NoError(t, err)
	defer watchResp.Body.Close()
	close(block)

	var payloads []string
	scanner := bufio.NewScanner(watchResp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NotEmpty(t, payloads)

	var last schemas.Event
	require.NoError(t, json.Unmarshal([]byte(payloads[len(payloads)-1]), &last))
	assert.Equal(t, schemas.EventStatus, last.Kind)
	assert.Equal(t, "completed", last.Payload)
}
