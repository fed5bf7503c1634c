// Package echo provides Echo middleware that enforces per-app blocking state
package echo

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// AppIDExtractor extracts the monitored app ID from an Echo context.
// Return empty string if the request cannot be attributed to an app.
type AppIDExtractor func(c echo.Context) string

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
	// If nil, responds with BlockedStatusCode and a JSON body.
	OnBlocked func(c echo.Context, state screenpaw.BlockingState) error

	// OnError is called when an internal error occurs.
	// If nil, responds with 500 Internal Server Error.
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that denies requests for apps whose
// blocking state is over-limit-blocked
func Middleware(cfg Config) echo.MiddlewareFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Engine == nil {
		panic("screenpaw/echo: Config.Engine is required")
	}
	if cfg.GetAppID == nil {
		panic("screenpaw/echo: Config.GetAppID is required")
	}
	if cfg.BlockedStatusCode == 0 {
		cfg.BlockedStatusCode = http.StatusForbidden
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			appID := cfg.GetAppID(c)
			if appID == "" {
				return next(c)
			}

			state, err := cfg.Engine.BlockingState(c.Request().Context(), appID)
			if err != nil {
				if errors.Is(err, screenpaw.ErrUnknownApp) {
					return next(c)
				}
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "internal error",
				})
			}

			switch state {
			case screenpaw.StateOverLimitBlocked:
				if cfg.OnBlocked != nil {
					return cfg.OnBlocked(c, state)
				}
				return c.JSON(cfg.BlockedStatusCode, map[string]string{
					"error":  fmt.Sprintf("app %s is blocked for the rest of the day", appID),
					"app_id": appID,
					"state":  string(state),
				})
			case screenpaw.StateNearLimit:
				c.Response().Header().Set("X-Screenpaw-Warning", "near-limit")
			}

			return next(c)
		}
	}
}

// FromHeader returns an AppIDExtractor that reads the app ID from a header
func FromHeader(headerName string) AppIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromParam returns an AppIDExtractor that reads the app ID from a route
// parameter
func FromParam(name string) AppIDExtractor {
	return func(c echo.Context) string {
		return c.Param(name)
	}
}
