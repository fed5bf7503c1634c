package fiber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

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

func setupApp(engine *screenpaw.Engine) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{
		Engine:   engine,
		GetAppID: FromHeader("X-App-ID"),
	}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMiddleware_BlocksOverLimitApp(t *testing.T) {
	app := setupApp(setupTestEngine(t))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-App-ID", "blocked-app")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for blocked app, got %d", resp.StatusCode)
	}
}

func TestMiddleware_PassesCompliantAndUnknownApps(t *testing.T) {
	app := setupApp(setupTestEngine(t))

	for _, appID := range []string{"free-app", "not-monitored", ""} {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		if appID != "" {
			req.Header.Set("X-App-ID", appID)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("App %q: expected 200, got %d", appID, resp.StatusCode)
		}
	}
}

func TestMiddleware_FromParamExtractor(t *testing.T) {
	engine := setupTestEngine(t)
	app := fiber.New()
	app.Get("/apps/:app", Middleware(Config{
		Engine:   engine,
		GetAppID: FromParam("app"),
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/apps/blocked-app", http.NoBody)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 via param attribution, got %d", resp.StatusCode)
	}
}

func TestMiddleware_OnBlockedCallback(t *testing.T) {
	engine := setupTestEngine(t)
	app := fiber.New()
	app.Use(Middleware(Config{
		Engine:   engine,
		GetAppID: FromHeader("X-App-ID"),
		OnBlocked: func(c *fiber.Ctx, state screenpaw.BlockingState) error {
			return c.Status(http.StatusTeapot).JSON(fiber.Map{"state": string(state)})
		},
	}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-App-ID", "blocked-app")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("Expected custom status from callback, got %d", resp.StatusCode)
	}
}

func TestMiddleware_PanicsOnMissingConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for missing Engine")
		}
	}()
	Middleware(Config{GetAppID: FromHeader("X-App-ID")})
}
