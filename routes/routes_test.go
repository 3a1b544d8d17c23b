package routes

import (
	"aaisaheb/controllers"
	"aaisaheb/database"
	"aaisaheb/interceptor"
	"aaisaheb/models"
	"aaisaheb/repositories"
	"aaisaheb/services"
	"aaisaheb/websocket"
	"aaisaheb/workers"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchableTransport struct {
	down atomic.Bool
}

func (s *switchableTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.down.Load() {
		return nil, errors.New("network unreachable")
	}
	return http.DefaultTransport.RoundTrip(req)
}

type testEnv struct {
	router   *gin.Engine
	queue    *repositories.FileQueueRepository
	link     *switchableTransport
	received atomic.Int32
}

func setupTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{link: &switchableTransport{}}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/activate_sos", "/api/sos/activate":
			env.received.Add(1)
			w.Write([]byte(`{"success":true,"alert_id":"A-1"}`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	}))
	t.Cleanup(upstream.Close)

	queue, err := repositories.NewFileQueueRepository(filepath.Join(t.TempDir(), "offline_alerts.json"))
	require.NoError(t, err)
	env.queue = queue

	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := repositories.NewOfflineRequestRepository(db)

	submitter := services.NewSubmissionService(upstream.URL+"/activate_sos", upstream.URL+"/cancel_sos", "", time.Second, nil)
	sos := services.NewSOSService(submitter, queue, services.NewStaticLocationProvider(12.9716, 77.5946, 10), nil, nil, nil, services.RealClock(), services.SOSConfig{
		CountdownSteps: 3,
		CountdownUnit:  time.Hour,
	})
	syncer := services.NewSyncCoordinator(queue, submitter, nil, 3)

	transport := interceptor.NewTransport(env.link, store, nil)
	reconcile := workers.NewReconcileWorker(transport, "", nil)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	hub := websocket.NewHub()
	env.router = SetupRoutes(&Controllers{
		SOS:            controllers.NewSOSController(sos, syncer, queue, nil),
		OfflineRequest: controllers.NewOfflineRequestController(store, reconcile),
		Proxy:          controllers.NewProxyController(target, transport),
		WebSocket:      controllers.NewWebSocketController(hub),
		Health:         controllers.NewHealthController(nil, "file", "sqlite"),
	}, Options{Environment: "test", LocalAPIToken: token})
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var resp models.APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func sessionState(t *testing.T, data interface{}) string {
	t.Helper()
	m, ok := data.(map[string]interface{})
	require.True(t, ok, "unexpected data: %v", data)
	if s, ok := m["session"].(map[string]interface{}); ok {
		m = s
	}
	state, _ := m["state"].(string)
	return state
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, "")

	w, _ := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestHealthReportsUnreachableLogStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	health := controllers.NewHealthController(nil, "file", "mongo").WithLogStoreCheck(func() bool { return false })
	router := gin.New()
	router.GET("/health", health.HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "mongo (unreachable)", resp.Services["interceptionLog"])
}

func TestActivateAndCancelFlow(t *testing.T) {
	env := setupTestEnv(t, "")

	w, resp := env.do(t, http.MethodPost, "/sos/activate", `{"source":"button"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "counting_down", sessionState(t, resp.Data))

	w, resp = env.do(t, http.MethodPost, "/sos/activate", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)

	w, resp = env.do(t, http.MethodPost, "/sos/cancel", `{"reason":"False alarm"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", sessionState(t, resp.Data))

	w, _ = env.do(t, http.MethodPost, "/sos/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = env.do(t, http.MethodGet, "/sos/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := resp.Data.(map[string]interface{})
	last := status["lastSession"].(map[string]interface{})
	assert.Equal(t, "cancelled", last["state"])
	assert.Equal(t, true, status["online"])
	assert.EqualValues(t, 0, status["pendingCount"])
	assert.Zero(t, env.received.Load())
}

func TestActivateRejectsUnknownSource(t *testing.T) {
	env := setupTestEnv(t, "")

	w, resp := env.do(t, http.MethodPost, "/sos/activate", `{"source":"telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestControlAPIRequiresToken(t *testing.T) {
	env := setupTestEnv(t, "local-secret")

	w, _ := env.do(t, http.MethodGet, "/sos/status", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodGet, "/sos/status", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodGet, "/sos/status", "", "Authorization", "Bearer local-secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueueAndSync(t *testing.T) {
	env := setupTestEnv(t, "")
	require.NoError(t, env.queue.Enqueue(context.Background(), models.Alert{
		ID:        "offline_1709287200000",
		Address:   "12.971600, 77.594600",
		CreatedAt: time.Now(),
	}))

	w, resp := env.do(t, http.MethodGet, "/sos/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = env.do(t, http.MethodPost, "/sos/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := resp.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"offline_1709287200000"}, report["sent"])
	assert.EqualValues(t, 1, env.received.Load())

	pending, err := env.queue.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	w, resp = env.do(t, http.MethodGet, "/sos/failed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data)
}

func TestProxyStoresOfflineSubmissionAndReconciles(t *testing.T) {
	env := setupTestEnv(t, "")
	env.link.down.Store(true)

	req := httptest.NewRequest(http.MethodPost, "/activate_sos", strings.NewReader(`{"timestamp":1709287200000}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var offline models.SubmitAlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offline))
	assert.True(t, offline.Offline)
	assert.True(t, strings.HasPrefix(offline.AlertID, "offline_"))

	w, resp := env.do(t, http.MethodGet, "/sos/offline-requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	env.link.down.Store(false)
	w, resp = env.do(t, http.MethodPost, "/sos/offline-requests/reconcile", "")
	require.Equal(t, http.StatusOK, w.Code)
	result := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, result["synced"])
	assert.EqualValues(t, 1, env.received.Load())

	w, _ = env.do(t, http.MethodGet, "/sos/offline-requests?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketStats(t *testing.T) {
	env := setupTestEnv(t, "")

	w, resp := env.do(t, http.MethodGet, "/sos/ws-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}
