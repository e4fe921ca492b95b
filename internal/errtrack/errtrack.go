// Package errtrack wraps the Sentry SDK. Every function is a no-op until Initialize succeeds with a DSN.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// Config holds Sentry settings.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Initialize sets up the Sentry SDK. An empty DSN disables reporting and returns nil.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	})
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	if !IsEnabled() {
		return true
	}
	return sentry.Flush(timeout)
}

// CaptureException reports err using the hub bound to ctx, falling back to the global hub.
func CaptureException(ctx context.Context, err error) {
	if err == nil || !IsEnabled() {
		return
	}
	var hub *sentry.Hub
	if ctx != nil {
		hub = sentry.GetHubFromContext(ctx)
	}
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// Middleware returns the Sentry gin middleware, or a pass-through handler when Sentry is disabled.
func Middleware() gin.HandlerFunc {
	if !IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}
