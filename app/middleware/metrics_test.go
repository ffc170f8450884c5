package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceOf(t *testing.T) {
	tests := map[string]string{
		"/api/v1/forms/8b0e/submit": "submit",
		"/api/v1/auth/login":        "auth",
		"/api/v1/admin/affiliates":  "admin",
		"/api/v1/leads/8b0e/status": "dashboard",
		"/api/v1/stats/series":      "dashboard",
		"/api/v1/health":            "health",
		"/metrics":                  "other",
		"/api/v1/nothing":           "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, surfaceOf(path), path)
	}
}

func TestMetricsLabelRouteTemplates(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/api/v1/leads/:uuid", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Use(func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	for _, path := range []string{"/api/v1/leads/5f1c2a7e-lead", "/api/v1/random-9d41"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	body := string(raw)

	var leadLine, unmatchedLine string
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "kitsune_http_requests_total{") {
			continue
		}
		if strings.Contains(line, `route="/api/v1/leads/:uuid"`) {
			leadLine = line
		}
		if strings.Contains(line, `route="unmatched"`) && strings.Contains(line, `status="404"`) {
			unmatchedLine = line
		}
	}
	require.NotEmpty(t, leadLine, body)
	assert.Contains(t, leadLine, `surface="dashboard"`)
	assert.Contains(t, leadLine, `status="200"`)
	assert.NotEmpty(t, unmatchedLine, "fallthrough requests share one route label")
	assert.NotContains(t, body, "5f1c2a7e-lead")
	assert.NotContains(t, body, "random-9d41")
}
