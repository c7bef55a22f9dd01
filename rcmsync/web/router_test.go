package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

// stubService records calls and plays back canned responses.
type stubService struct {
	status models.IntegrationStatus
	cfg    models.SyncConfig

	triggerResult *models.SyncRunResult
	triggerErr    error
	updateErr     error

	started   int
	stopped   int
	triggered int
	updated   []models.SyncConfig
}

func (s *stubService) Start(ctx context.Context) { s.started++ }
func (s *stubService) Stop(ctx context.Context)  { s.stopped++ }

func (s *stubService) TriggerManualSync(ctx context.Context) (*models.SyncRunResult, error) {
	s.triggered++
	return s.triggerResult, s.triggerErr
}

func (s *stubService) Status() models.IntegrationStatus { return s.status }
func (s *stubService) Config() models.SyncConfig        { return s.cfg }

func (s *stubService) UpdateConfig(cfg models.SyncConfig) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, cfg)
	s.cfg = cfg
	return nil
}

func defaultStub() *stubService {
	return &stubService{
		status: models.IntegrationStatus{Connected: true, LastSyncStatus: models.RunSuccess},
		cfg: models.SyncConfig{
			Enabled:         true,
			IntervalMinutes: 60,
			LookbackDays:    7,
			Statuses:        []string{"REJECTED", "PARTIALLY_REJECTED"},
		},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndVersion(t *testing.T) {
	router := NewRouter(NewAPI(defaultStub(), nil))

	rr := doRequest(t, router, http.MethodGet, "/_health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Transaction-Id"))

	rr = doRequest(t, router, http.MethodGet, "/_version", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), Version)
}

func TestGetStatus(t *testing.T) {
	stub := defaultStub()
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var status models.IntegrationStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.True(t, status.Connected)
	assert.Equal(t, models.RunSuccess, status.LastSyncStatus)
}

func TestTriggerSync(t *testing.T) {
	stub := defaultStub()
	stub.triggerResult = &models.SyncRunResult{
		RunID:         "RUN-AAAABBBBCCCC",
		Status:        models.RunSuccess,
		TotalImported: 3,
	}
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/trigger", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, stub.triggered)

	var result models.SyncRunResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "RUN-AAAABBBBCCCC", result.RunID)
	assert.Equal(t, 3, result.TotalImported)
}

func TestTriggerSyncWhileRunningConflicts(t *testing.T) {
	stub := defaultStub()
	stub.triggerErr = models.ErrSyncInProgress
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/trigger", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "sync already in progress")
}

func TestTriggerSyncUpstreamFailure(t *testing.T) {
	stub := defaultStub()
	stub.triggerErr = errors.New("source system unreachable")
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/trigger", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestUpdateConfigPartialPatch(t *testing.T) {
	stub := defaultStub()
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPatch, "/api/v1/config", `{"intervalMinutes": 15}`)
	require.Equal(t, http.StatusOK, rr.Code)

	// Only the patched key changed; the rest carried over.
	require.Len(t, stub.updated, 1)
	assert.Equal(t, 15, stub.updated[0].IntervalMinutes)
	assert.Equal(t, 7, stub.updated[0].LookbackDays)
	assert.True(t, stub.updated[0].Enabled)
}

func TestUpdateConfigRejectsUnknownKeys(t *testing.T) {
	stub := defaultStub()
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPatch, "/api/v1/config", `{"cadence": 15}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, stub.updated)
}

func TestUpdateConfigRejectsInvalidJSON(t *testing.T) {
	router := NewRouter(NewAPI(defaultStub(), nil))

	rr := doRequest(t, router, http.MethodPatch, "/api/v1/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateConfigValidationFailure(t *testing.T) {
	stub := defaultStub()
	stub.updateErr = errors.New("lookbackDays must be positive")
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPatch, "/api/v1/config", `{"lookbackDays": -1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "lookbackDays must be positive")
}

func TestStopSync(t *testing.T) {
	stub := defaultStub()
	router := NewRouter(NewAPI(stub, nil))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/stop", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, stub.stopped)
}

func TestRecentAuditWithoutStore(t *testing.T) {
	router := NewRouter(NewAPI(defaultStub(), nil))

	rr := doRequest(t, router, http.MethodGet, "/api/v1/audit/recent", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecentAudit(t *testing.T) {
	sink := audit.NewMemorySink()
	require.NoError(t, sink.Log(context.Background(), audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventSyncComplete,
		Action:    "SYNC",
		Status:    audit.OutcomeSuccess,
	}))
	router := NewRouter(NewAPI(defaultStub(), sink))

	rr := doRequest(t, router, http.MethodGet, "/api/v1/audit/recent?limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var events []audit.Event
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventSyncComplete, events[0].EventType)
}
