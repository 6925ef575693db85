package ports

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type PresenceHTTPHandler interface {
	CallParticipants(c *gin.Context)
	SessionParticipants(c *gin.Context)
	GetSession(c *gin.Context)
}

type WebSocketHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	ConnectionCount() int
}
