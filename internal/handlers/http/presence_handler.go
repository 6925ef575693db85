package http

import (
	"errors"
	"net/http"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	apperrors "studyhub/pkg/errors"
	"studyhub/pkg/validation"

	"github.com/gin-gonic/gin"
)

// PresenceHandler serves read-only views of who is in a call or session.
// Joining and leaving only happen over the WebSocket.
type PresenceHandler struct {
	calls    ports.CallService
	sessions ports.SessionService
	repo     ports.SessionRepository
}

var _ ports.PresenceHTTPHandler = (*PresenceHandler)(nil)

func NewPresenceHandler(
	calls ports.CallService,
	sessions ports.SessionService,
	repo ports.SessionRepository,
) *PresenceHandler {
	return &PresenceHandler{
		calls:    calls,
		sessions: sessions,
		repo:     repo,
	}
}

func (h *PresenceHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.GET("/calls/:groupId/participants", h.CallParticipants)
		api.GET("/sessions/:sessionId", h.GetSession)
		api.GET("/sessions/:sessionId/participants", h.SessionParticipants)
	}
}

func (h *PresenceHandler) CallParticipants(c *gin.Context) {
	groupID := c.Param("groupId")
	if err := validation.ValidateRoomID(groupID); err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid groupId", http.StatusBadRequest))
		return
	}

	participants := h.calls.Participants(domain.RoomID(groupID))
	c.JSON(http.StatusOK, gin.H{
		"groupId":      groupID,
		"participants": domain.NewParticipantViews(participants),
	})
}

func (h *PresenceHandler) SessionParticipants(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	participants := h.sessions.Participants(sessionID)
	c.JSON(http.StatusOK, gin.H{
		"sessionId":    sessionID,
		"participants": domain.NewParticipantViews(participants),
	})
}

// GetSession reports the persisted lifecycle state of a session.
func (h *PresenceHandler) GetSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeNotFound, "session not found", http.StatusNotFound))
			return
		}
		_ = c.Error(apperrors.WrapInternalError(err, "failed to load session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":      session,
		"participants": len(h.sessions.Participants(sessionID)),
	})
}

func (h *PresenceHandler) sessionID(c *gin.Context) (domain.SessionID, bool) {
	id := c.Param("sessionId")
	if err := validation.ValidateRoomID(id); err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid sessionId", http.StatusBadRequest))
		return "", false
	}
	return domain.SessionID(id), true
}
