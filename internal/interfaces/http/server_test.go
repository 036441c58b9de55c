package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpServer "github.com/ministryofjustice/laa-data-access-api-sub001/internal/interfaces/http"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication"
)

type scheduler struct {
	running  atomic.Bool
	triggers atomic.Int32
}

func (s *scheduler) TriggerNow() {
	s.triggers.Add(1)
}

func (s *scheduler) IsRunning() bool {
	return s.running.Load()
}

type passState publication.State

func (p passState) State() publication.State {
	return publication.State(p)
}

func newServer(s *scheduler, state publication.State) http.Handler {
	e := commonHTTP.NewEcho()
	httpServer.NewServer(e, ":0", s, passState(state))
	return e
}

func do(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := &scheduler{}
	handler := newServer(s, publication.StateProcessing)

	rec := do(handler, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.running.Store(true)

	rec = do(handler, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var response httpServer.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "processing", response.Pass)
}

func TestTriggerPublication(t *testing.T) {
	s := &scheduler{}
	handler := newServer(s, publication.StateIdle)

	rec := do(handler, http.MethodPost, "/publication/run")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, s.triggers.Load())

	s.running.Store(true)

	rec = do(handler, http.MethodPost, "/publication/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.EqualValues(t, 1, s.triggers.Load())

	rec = do(handler, http.MethodGet, "/publication/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	handler := newServer(&scheduler{}, publication.StateIdle)

	rec := do(handler, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "publication_events_published_total")
}
