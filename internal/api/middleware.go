package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"libchat/internal/errtrack"
	"libchat/internal/logger"
	"libchat/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// NewEngine builds the gin engine with the standard middleware chain and all routes.
// metricsHandler is mounted on /metrics when non-nil.
func NewEngine(h *Handler, log *logger.Logger, m *metrics.Metrics, metricsHandler http.Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(
		requestIDMiddleware(),
		loggingMiddleware(log),
		gin.Recovery(),
		errtrack.Middleware(),
		securityHeadersMiddleware(),
		metricsMiddleware(m),
	)
	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}
	h.RegisterRoutes(engine)
	return engine
}

// requestIDMiddleware propagates or assigns X-Request-ID and binds it to the request context.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithModule("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("method", method).
			WithField("path", path).
			WithField("status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("ip", c.ClientIP())

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).ErrorContext(ctx, "Request completed with errors")
		case status >= 500:
			entry.ErrorContext(ctx, "Request failed")
		case status >= 400:
			entry.WarnContext(ctx, "Request completed with client error")
		default:
			entry.DebugContext(ctx, "Request completed")
		}
	}
}

// metricsMiddleware counts requests by route template so ids do not explode label cardinality.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}
