package middleware

import (
	"bufio"
	"net"
	"net/http"
	"sync"

	"studyhub/internal/core/services"
	"studyhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const unmatchedRoute = "unmatched"

// TracingMiddleware opens a server span per request, named after the route
// template, and carries it on the request context. A WebSocket upgrade
// span ends when the connection is hijacked; the frames that follow get
// spans of their own.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		c.Request = c.Request.WithContext(ctx)

		var once sync.Once
		finish := func(status int) {
			once.Do(func() {
				endRequestSpan(c, span, status)
			})
		}

		if websocket.IsWebSocketUpgrade(c.Request) {
			span.SetAttributes(attribute.Bool("http.upgrade.websocket", true))
			c.Writer = &hijackNotifier{
				ResponseWriter: c.Writer,
				onHijack:       func() { finish(http.StatusSwitchingProtocols) },
			}
		}

		c.Next()
		finish(c.Writer.Status())
	}
}

func endRequestSpan(c *gin.Context, span trace.Span, status int) {
	if claims, ok := services.ClaimsFromContext(c.Request.Context()); ok {
		span.SetAttributes(tracing.UserIDKey.String(string(claims.UserID)))
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, c.Errors.String())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// hijackNotifier reports the moment the upgrade handler takes over the
// connection. gin's writer cannot see the 101 written on the raw conn.
type hijackNotifier struct {
	gin.ResponseWriter
	onHijack func()
}

func (w *hijackNotifier) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := w.ResponseWriter.Hijack()
	if err == nil {
		w.onHijack()
	}
	return conn, rw, err
}
