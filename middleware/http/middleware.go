// Package http provides HTTP middleware that enforces per-app blocking
// state, for companion agents and local proxies that front traffic on
// behalf of monitored apps.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// AppIDExtractor extracts the monitored app ID from an HTTP request.
// Return empty string if the request cannot be attributed to an app.
type AppIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Engine is the screen-time engine instance (required)
	Engine *screenpaw.Engine

	// GetAppID attributes a request to a monitored app (required).
	// Requests with no attribution pass through unenforced.
	GetAppID AppIDExtractor

	// OnBlocked is called when the app is over-limit-blocked today.
	// If nil, returns 403 Forbidden.
	OnBlocked func(w http.ResponseWriter, r *http.Request, state screenpaw.BlockingState)

	// OnError is called when an internal error occurs.
	// If nil, returns 500 Internal Server Error.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware creates an HTTP middleware that denies requests for apps whose
// blocking state is over-limit-blocked. Near-limit apps pass through with an
// advisory X-Screenpaw-Warning header.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Engine == nil {
		panic("screenpaw/http: Config.Engine is required")
	}
	if config.GetAppID == nil {
		panic("screenpaw/http: Config.GetAppID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appID := config.GetAppID(r)
			if appID == "" {
				next.ServeHTTP(w, r)
				return
			}

			state, err := config.Engine.BlockingState(r.Context(), appID)
			if err != nil {
				// Unmonitored apps are never blocked
				if errors.Is(err, screenpaw.ErrUnknownApp) {
					next.ServeHTTP(w, r)
					return
				}
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			switch state {
			case screenpaw.StateOverLimitBlocked:
				if config.OnBlocked != nil {
					config.OnBlocked(w, r, state)
				} else {
					msg := fmt.Sprintf("App %s is blocked for the rest of the day", appID)
					http.Error(w, msg, http.StatusForbidden)
				}
				return
			case screenpaw.StateNearLimit:
				w.Header().Set("X-Screenpaw-Warning", "near-limit")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContextKey is a type for context keys
type ContextKey string

// AppIDKey is the context key for the attributed app ID
const AppIDKey ContextKey = "screenpaw:appID"

// FromContext returns an AppIDExtractor that reads the app ID from the
// request context
func FromContext(key ContextKey) AppIDExtractor {
	return func(r *http.Request) string {
		if appID, ok := r.Context().Value(key).(string); ok {
			return appID
		}
		return ""
	}
}

// FromHeader returns an AppIDExtractor that reads the app ID from a header
func FromHeader(headerName string) AppIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FixedApp returns an AppIDExtractor that always attributes requests to one
// app, for proxies dedicated to a single upstream
func FixedApp(appID string) AppIDExtractor {
	return func(r *http.Request) string {
		return appID
	}
}

// WithAppID adds the attributed app ID to a request context
func WithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, AppIDKey, appID)
}
