package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/domainstore"
	"github.com/betagouv/zacharie-sub006/internal/localstore"
	"github.com/betagouv/zacharie-sub006/internal/model"
	syncengine "github.com/betagouv/zacharie-sub006/internal/sync"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
	"github.com/betagouv/zacharie-sub006/internal/transport"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T) (*Server, *localstore.Queue, *domainstore.Store) {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "device.db"), "test", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	queue := localstore.NewQueue(local)
	conn := &transport.Connectivity{}
	client := transport.NewClient(&config.APIConfig{BaseURL: "http://127.0.0.1:1"})
	engine := syncengine.NewEngine(queue, client, conn, &tracing.NewRelicTracer{}, testLogger())

	store, err := domainstore.NewStore(local, engine, testLogger())
	require.NoError(t, err)

	cfg := &config.ServerConfig{Address: "127.0.0.1:0", Mode: gin.TestMode}
	server := NewServer(cfg, engine, store, &tracing.NewRelicTracer{}, testLogger())
	return server, queue, store
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSyncStatusReportsStateAndQueueDepth(t *testing.T) {
	server, queue, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"state":"offline","pending":0}`, w.Body.String())

	_, err := queue.Enqueue(localstore.PendingMutation{Target: "/api/fei/r1", Method: "PUT"})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"state":"offline","pending":1}`, w.Body.String())
}

func TestBadgeReportsPendingActionCount(t *testing.T) {
	server, _, store := newTestServer(t)

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/badge", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"count":0}`, w.Body.String())

	userID := "u1"
	require.NoError(t, store.SetCurrentUser(&model.User{Base: model.Base{UUID: userID}}))
	require.NoError(t, store.ApplySynced([]model.Fiche{{
		Base:         model.Base{UUID: "r1"},
		CurrentOwner: model.OwnerSlot{UserID: &userID, Role: model.RoleExaminateurInitial},
	}}, nil, nil))

	w = httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/badge", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"count":1}`, w.Body.String())
}
