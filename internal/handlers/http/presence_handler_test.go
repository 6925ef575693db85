package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/services"
	"studyhub/internal/infrastructure/middleware"
	"studyhub/internal/infrastructure/repositories/memory"
	"studyhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopNotifier struct{}

func (nopNotifier) SendTo(domain.ConnectionID, string, interface{}) error              { return nil }
func (nopNotifier) Broadcast(domain.RoomKey, string, interface{}, domain.ConnectionID) {}
func (nopNotifier) JoinGroup(domain.RoomKey, domain.ConnectionID)                      {}
func (nopNotifier) LeaveGroup(domain.RoomKey, domain.ConnectionID)                     {}

type presenceFixture struct {
	router   *gin.Engine
	calls    *memory.PresenceRegistry
	sessions *memory.PresenceRegistry
	repo     *memory.SessionRepository
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	calls := memory.NewPresenceRegistry(domain.RoomKindCall)
	sessions := memory.NewPresenceRegistry(domain.RoomKindSession)
	repo := memory.NewSessionRepository().(*memory.SessionRepository)

	handler := NewPresenceHandler(
		services.NewCallService(calls, nopNotifier{}, nil, log),
		services.NewSessionService(sessions, repo, nopNotifier{}, nil, nil, log),
		repo,
	)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	handler.SetupRoutes(router)

	return &presenceFixture{router: router, calls: calls, sessions: sessions, repo: repo}
}

func (f *presenceFixture) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestPresenceHandler_CallParticipants(t *testing.T) {
	f := newPresenceFixture(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f.calls.Join("g1", domain.Participant{ConnectionID: "c2", UserID: "u2", JoinedAt: base.Add(time.Second)})
	f.calls.Join("g1", domain.Participant{ConnectionID: "c1", UserID: "u1", UserName: "Ann", JoinedAt: base})

	code, body := f.get(t, "/api/v1/calls/g1/participants")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "g1", body["groupId"])
	participants := body["participants"].([]interface{})
	require.Len(t, participants, 2)
	first := participants[0].(map[string]interface{})
	assert.Equal(t, "c1", first["socketId"])
	assert.Equal(t, "Ann", first["userName"])
}

func TestPresenceHandler_EmptyRoom(t *testing.T) {
	f := newPresenceFixture(t)

	code, body := f.get(t, "/api/v1/sessions/s1/participants")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{}, body["participants"])
}

func TestPresenceHandler_RejectsInvalidIDs(t *testing.T) {
	f := newPresenceFixture(t)

	code, body := f.get(t, "/api/v1/calls/bad%20id/participants")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", body["error"])

	code, _ = f.get(t, "/api/v1/sessions/bad$id")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPresenceHandler_GetSession(t *testing.T) {
	f := newPresenceFixture(t)

	code, body := f.get(t, "/api/v1/sessions/s1")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["error"])

	_, err := f.repo.UpdateSessionStart(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	f.sessions.Join("s1", domain.Participant{ConnectionID: "c1", UserID: "u1", JoinedAt: time.Now()})

	code, body = f.get(t, "/api/v1/sessions/s1")
	assert.Equal(t, http.StatusOK, code)
	session := body["session"].(map[string]interface{})
	assert.Equal(t, true, session["is_started"])
	assert.Equal(t, float64(1), body["participants"])
}
