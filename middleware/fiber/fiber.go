// Package fiber provides Fiber middleware that enforces per-app blocking
// state
package fiber

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// AppIDExtractor extracts the monitored app ID from a Fiber context.
// Return empty string if the request cannot be attributed to an app.
type AppIDExtractor func(c *fiber.Ctx) string

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
	OnBlocked func(c *fiber.Ctx, state screenpaw.BlockingState) error

	// OnError is called when an internal error occurs.
	// If nil, responds with 500 Internal Server Error.
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that denies requests for apps whose
// blocking state is over-limit-blocked
func Middleware(cfg Config) fiber.Handler {
	if cfg.Engine == nil {
		panic("screenpaw/fiber: Config.Engine is required")
	}
	if cfg.GetAppID == nil {
		panic("screenpaw/fiber: Config.GetAppID is required")
	}
	if cfg.BlockedStatusCode == 0 {
		cfg.BlockedStatusCode = fiber.StatusForbidden
	}

	return func(c *fiber.Ctx) error {
		appID := cfg.GetAppID(c)
		if appID == "" {
			return c.Next()
		}

		// Fiber uses fasthttp, so c.UserContext() is the context.Context
		state, err := cfg.Engine.BlockingState(c.UserContext(), appID)
		if err != nil {
			if errors.Is(err, screenpaw.ErrUnknownApp) {
				return c.Next()
			}
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
			})
		}

		switch state {
		case screenpaw.StateOverLimitBlocked:
			if cfg.OnBlocked != nil {
				return cfg.OnBlocked(c, state)
			}
			return c.Status(cfg.BlockedStatusCode).JSON(fiber.Map{
				"error":  fmt.Sprintf("app %s is blocked for the rest of the day", appID),
				"app_id": appID,
				"state":  string(state),
			})
		case screenpaw.StateNearLimit:
			c.Set("X-Screenpaw-Warning", "near-limit")
		}

		return c.Next()
	}
}

// FromHeader returns an AppIDExtractor that reads the app ID from a header.
// Fiber v2 uses c.Get() for headers.
func FromHeader(headerName string) AppIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromParam returns an AppIDExtractor that reads the app ID from a route
// parameter
func FromParam(name string) AppIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Params(name)
	}
}

// FromLocals returns an AppIDExtractor that reads the app ID from Fiber
// context values, for apps attributed by an earlier middleware
func FromLocals(key string) AppIDExtractor {
	return func(c *fiber.Ctx) string {
		if val := c.Locals(key); val != nil {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}
