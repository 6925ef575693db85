package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"studyhub/pkg/errors"
	"studyhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newErrorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	router := gin.New()
	router.Use(RecoveryMiddleware(log), ErrorHandlerMiddleware(log))
	router.GET("/app", func(c *gin.Context) {
		_ = c.Error(errors.NewNotFoundError("session not found").WithContext("sessionId", "s1"))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(stderrors.New("db exploded: password=hunter2"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return router
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandlerMiddleware_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.Equal(t, "session not found", body["message"])
	assert.Equal(t, map[string]interface{}{"sessionId": "s1"}, body["details"])
}

func TestErrorHandlerMiddleware_HidesPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")
	assert.Equal(t, errors.GenericMessage, decodeBody(t, w)["message"])
}

func TestRecoveryMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, w)["error"])
}
