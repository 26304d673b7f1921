package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/model"
	"github.com/betagouv/zacharie-sub006/internal/notify"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
)

type mockHopRepository struct {
	mock.Mock
}

func (m *mockHopRepository) Upsert(ctx context.Context, hop *model.Intermediaire) (*model.Intermediaire, error) {
	args := m.Called(ctx, hop)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Intermediaire), args.Error(1)
}

func (m *mockHopRepository) GetByID(ctx context.Context, id string) (*model.Intermediaire, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Intermediaire), args.Error(1)
}

func (m *mockHopRepository) FindByFiche(ctx context.Context, ficheID string) ([]*model.Intermediaire, error) {
	args := m.Called(ctx, ficheID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Intermediaire), args.Error(1)
}

type mockLogRepository struct {
	mock.Mock
}

func (m *mockLogRepository) Exists(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) (bool, error) {
	args := m.Called(ctx, subjectID, kind, channel)
	return args.Bool(0), args.Error(1)
}

func (m *mockLogRepository) Create(ctx context.Context, entry *model.NotificationLog) (*model.NotificationLog, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotificationLog), args.Error(1)
}

func (m *mockLogRepository) GetBySubject(ctx context.Context, subjectID string) ([]*model.NotificationLog, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.NotificationLog), args.Error(1)
}

func strPtr(s string) *string { return &s }

func newTestIngest(t *testing.T, hops *mockHopRepository, logs *mockLogRepository) *IngestServer {
	t.Helper()
	cache, err := notify.NewRedisGuardCache(&config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	gate := notify.NewGate(logs, cache, nil, time.Second, &tracing.NewRelicTracer{}, testLogger())
	cfg := &config.ServerConfig{Address: "127.0.0.1:0", Mode: "test"}
	return NewIngestServer(cfg, hops, gate, &tracing.NewRelicTracer{}, testLogger())
}

func TestHopUpsertRecordsAndSchedulesNotice(t *testing.T) {
	hopID := model.IntermediaireID("r1", "etg", 1)
	hops := new(mockHopRepository)
	hops.On("Upsert", mock.Anything, mock.MatchedBy(func(h *model.Intermediaire) bool {
		return h.UUID == hopID && h.FicheID == "r1"
	})).Return(&model.Intermediaire{
		Base:    model.Base{UUID: hopID},
		FicheID: "r1",
		OrgID:   strPtr("etg"),
		Role:    model.RoleETG,
	}, nil)

	logs := new(mockLogRepository)
	logs.On("Exists", mock.Anything, "r1", "hop-"+hopID, model.ChannelPush).Return(false, nil)

	server := newTestIngest(t, hops, logs)

	body := `{"fiche_id":"r1","org_id":"etg","role":"ETG","sequence":1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/fei-intermediaire/"+hopID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ok":true`)
	hops.AssertExpectations(t)
	logs.AssertExpectations(t)
}

func TestHopUpsertRejectsIdMismatchAndMissingFiche(t *testing.T) {
	hops := new(mockHopRepository)
	server := newTestIngest(t, hops, new(mockLogRepository))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/fei-intermediaire/h1",
		strings.NewReader(`{"uuid":"h2","fiche_id":"r1"}`))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/fei-intermediaire/h1",
		strings.NewReader(`{"uuid":"h1"}`))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	hops.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHopListReturnsSequencedHops(t *testing.T) {
	hops := new(mockHopRepository)
	hops.On("FindByFiche", mock.Anything, "r1").Return([]*model.Intermediaire{
		{Base: model.Base{UUID: "h1"}, FicheID: "r1", Sequence: 1},
		{Base: model.Base{UUID: "h2"}, FicheID: "r1", Sequence: 2},
	}, nil)

	server := newTestIngest(t, hops, new(mockLogRepository))

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fei/r1/intermediaires", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"h1"`)
	require.Contains(t, w.Body.String(), `"h2"`)
}
