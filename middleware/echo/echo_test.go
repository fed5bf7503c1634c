package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
	"github.com/screenpaw/screenpaw/storage/memory"
)

func setupTestEngine(t *testing.T) *screenpaw.Engine {
	t.Helper()

	reports := memory.NewReportStore()
	engine, err := screenpaw.New(memory.New(), reports, screenpaw.Config{})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx := context.Background()
	for _, app := range []string{"blocked-app", "free-app"} {
		if _, err := engine.AddMonitoredApp(ctx, app, app, 60); err != nil {
			t.Fatalf("AddMonitoredApp failed: %v", err)
		}
	}
	reports.SetReport(&screenpaw.SharedReport{
		TotalMinutes: 75,
		AppCount:     2,
		TopApps: []screenpaw.AppReport{
			{Name: "blocked-app", Minutes: 65},
			{Name: "free-app", Minutes: 10},
		},
	})
	if err := engine.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	return engine
}

func setupServer(engine *screenpaw.Engine) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{
		Engine:   engine,
		GetAppID: FromHeader("X-App-ID"),
	}))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestMiddleware_BlocksOverLimitApp(t *testing.T) {
	server := setupServer(setupTestEngine(t))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-App-ID", "blocked-app")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for blocked app, got %d", rec.Code)
	}
}

func TestMiddleware_PassesCompliantAndUnknownApps(t *testing.T) {
	server := setupServer(setupTestEngine(t))

	for _, appID := range []string{"free-app", "not-monitored", ""} {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		if appID != "" {
			req.Header.Set("X-App-ID", appID)
		}
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("App %q: expected 200, got %d", appID, rec.Code)
		}
	}
}

func TestMiddleware_FromParamExtractor(t *testing.T) {
	engine := setupTestEngine(t)
	e := echo.New()
	e.GET("/apps/:app", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(Config{
		Engine:   engine,
		GetAppID: FromParam("app"),
	}))

	req := httptest.NewRequest("GET", "/apps/blocked-app", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 via param attribution, got %d", rec.Code)
	}
}

func TestMiddleware_OnBlockedCallback(t *testing.T) {
	engine := setupTestEngine(t)
	e := echo.New()
	e.Use(Middleware(Config{
		Engine:   engine,
		GetAppID: FromHeader("X-App-ID"),
		OnBlocked: func(c echo.Context, state screenpaw.BlockingState) error {
			return c.JSON(http.StatusTeapot, map[string]string{"state": string(state)})
		},
	}))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-App-ID", "blocked-app")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected custom status from callback, got %d", rec.Code)
	}
}
