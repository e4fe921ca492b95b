package errtrack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithoutDSNIsDisabled(t *testing.T) {
	require.NoError(t, Initialize(Config{}))
	assert.False(t, IsEnabled())
	assert.True(t, Flush(time.Millisecond))
	assert.NotPanics(t, func() {
		CaptureException(context.Background(), errors.New("ignored"))
		CaptureException(context.Background(), nil)
	})
}

func TestInitializeRejectsMalformedDSN(t *testing.T) {
	require.Error(t, Initialize(Config{DSN: "not a dsn"}))
}

func TestMiddlewarePassThroughWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
