package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBacklog struct {
	pending  int
	failures []*models.Order
	err      error
}

func (f *fakeBacklog) PendingCount(context.Context) (int, error) { return f.pending, f.err }

func (f *fakeBacklog) Failures(context.Context) ([]*models.Order, error) { return f.failures, f.err }

func info() Info { return Info{RegisterID: "reg-1", RegisterName: "Front", Mode: "server"} }

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestHealthz(t *testing.T) {
	h := NewRouter(&fakeBacklog{}, info, NewMetrics(), logging.NewDiscard())
	res, body := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, map[string]string{"status": "ok", "register_id": "reg-1", "register_name": "Front", "mode": "server"}, got)
}

func TestSyncPending(t *testing.T) {
	b := &fakeBacklog{pending: 4, failures: []*models.Order{{
		ID:     "o1",
		Status: models.StatusSyncFailed,
		Sync:   models.SyncMeta{RetryCount: 3, ErrorKind: "terminal", LastError: "422"},
	}}}
	h := NewRouter(b, info, NewMetrics(), logging.NewDiscard())

	res, body := get(t, h, "/sync/pending")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got pendingResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 4, got.Pending)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, failure{OrderID: "o1", Status: "sync_failed", RetryCount: 3, ErrorKind: "terminal", LastError: "422"}, got.Failures[0])

	b.err = errors.New("db closed")
	res, _ = get(t, h, "/sync/pending")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	m := NewMetrics()
	m.SyncAttempt("synced")
	m.SyncAttempt("retryable")
	m.SyncBacklog(7)
	m.DiscoveryScan(2, nil)
	m.BridgeDegraded(true)
	m.BridgeDegraded(false)

	h := NewRouter(&fakeBacklog{}, info, m, logging.NewDiscard())
	res, body := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)

	for _, want := range []string{
		`lanpos_sync_attempts_total{outcome="synced"} 1`,
		`lanpos_sync_attempts_total{outcome="retryable"} 1`,
		`lanpos_sync_backlog 7`,
		`lanpos_discovery_scans_total{result="ok"} 1`,
		`lanpos_discovery_peers_found 2`,
		`lanpos_bridge_degraded 0`,
		`lanpos_bridge_degraded_transitions_total 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
}
