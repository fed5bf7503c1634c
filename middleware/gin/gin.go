// Package gin provides Gin middleware that enforces per-app blocking state
package gin

import (
	"errors"
	"fmt"
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// AppIDExtractor extracts the monitored app ID from a Gin context.
// Return empty string if the request cannot be attributed to an app.
type AppIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Engine is the screen-time engine instance (required)
	Engine *screenpaw.Engine

	// GetAppID attributes a request to a monitored app (required)
	GetAppID AppIDExtractor

	// BlockedStatusCode is the status returned for blocked apps
	// Default: 403 (Forbidden)
	BlockedStatusCode int

	// OnBlocked is called when the app is over-limit-blocked today.
	// If nil, aborts with BlockedStatusCode and a JSON body.
	OnBlocked func(c *gongin.Context, state screenpaw.BlockingState)

	// OnError is called when an internal error occurs.
	// If nil, aborts with 500 Internal Server Error.
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that denies requests for apps whose
// blocking state is over-limit-blocked
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Engine == nil {
		panic("screenpaw/gin: Config.Engine is required")
	}
	if cfg.GetAppID == nil {
		panic("screenpaw/gin: Config.GetAppID is required")
	}
	if cfg.BlockedStatusCode == 0 {
		cfg.BlockedStatusCode = http.StatusForbidden
	}

	return func(c *gongin.Context) {
		appID := cfg.GetAppID(c)
		if appID == "" {
			c.Next()
			return
		}

		state, err := cfg.Engine.BlockingState(c.Request.Context(), appID)
		if err != nil {
			if errors.Is(err, screenpaw.ErrUnknownApp) {
				c.Next()
				return
			}
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gongin.H{
					"error": "internal error",
				})
			}
			return
		}

		switch state {
		case screenpaw.StateOverLimitBlocked:
			if cfg.OnBlocked != nil {
				cfg.OnBlocked(c, state)
			} else {
				c.AbortWithStatusJSON(cfg.BlockedStatusCode, gongin.H{
					"error":  fmt.Sprintf("app %s is blocked for the rest of the day", appID),
					"app_id": appID,
					"state":  string(state),
				})
			}
			return
		case screenpaw.StateNearLimit:
			c.Header("X-Screenpaw-Warning", "near-limit")
		}

		c.Next()
	}
}

// FromHeader returns an AppIDExtractor that reads the app ID from a header
func FromHeader(headerName string) AppIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromParam returns an AppIDExtractor that reads the app ID from a route
// parameter
func FromParam(name string) AppIDExtractor {
	return func(c *gongin.Context) string {
		return c.Param(name)
	}
}
