package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Health(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantState  string
	}{
		{"NoDependencies", nil, fiber.StatusOK, "ok"},
		{"AllHealthy", map[string]HealthCheck{"database": healthy, "redis": healthy}, fiber.StatusOK, "ok"},
		{"RedisDown", map[string]HealthCheck{"database": healthy, "redis": down}, fiber.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", NewSystemHandler("shortlink", "1.2.3", tt.checks).Health)

			resp := doRequest(t, app, fiber.MethodGet, "/health", "", nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var data struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Components map[string]string `json:"components"`
			}
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &data))
			assert.Equal(t, tt.wantState, data.Status)
			assert.Equal(t, "1.2.3", data.Version)
			for name := range tt.checks {
				assert.Contains(t, data.Components, name)
			}
		})
	}
}
