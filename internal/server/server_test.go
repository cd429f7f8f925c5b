package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rohankatakam/filewatch/internal/logging"
	"github.com/rohankatakam/filewatch/internal/metrics"
	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/rohankatakam/filewatch/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = models.Target{Owner: "octo", Repo: "hello", Branch: "dev", Path: "README.md"}

type stubRunner struct {
	res   watcher.Result
	calls int
}

func (s *stubRunner) Run(ctx context.Context) watcher.Result {
	s.calls++
	return s.res
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestWatch_Success(t *testing.T) {
	runner := &stubRunner{res: watcher.Result{OK: true, Changed: true, NewCommits: 2, Notified: true, SHA: "abcdef0123456789", Target: target}}
	s := New(Options{}, runner, stubPinger{}, logging.Discard())

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := s.App().Test(httptest.NewRequest(method, "/api/watch", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, true, body["changed"])
		assert.Equal(t, "abcdef01", body["latest"])
		assert.Equal(t, float64(2), body["new_commits"])
	}
	assert.Equal(t, 2, runner.calls)
}

func TestWatch_FailureIs500(t *testing.T) {
	runner := &stubRunner{res: watcher.Result{OK: false, Stage: "fetch", Err: errors.New("GitHub API error: 404 Not Found"), Target: target}}
	s := New(Options{}, runner, stubPinger{}, logging.Discard())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/watch", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "fetch", body["stage"])
	assert.Equal(t, "GitHub API error: 404 Not Found", body["error"])
}

func TestHealth(t *testing.T) {
	s := New(Options{}, &stubRunner{}, stubPinger{}, logging.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s = New(Options{}, &stubRunner{}, stubPinger{err: errors.New("dial tcp: refused")}, logging.Discard())
	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unreachable", decode(t, resp)["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.ObserveRun(watcher.Result{OK: true}, 0)

	s := New(Options{Metrics: recorder.Handler()}, &stubRunner{}, stubPinger{}, logging.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `filewatch_runs_total{outcome="unchanged",stage=""} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	s := New(Options{}, &stubRunner{}, stubPinger{}, logging.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
