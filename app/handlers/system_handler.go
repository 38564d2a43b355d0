package handlers

import (
	"context"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/swaggo/swag"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// SystemHandler serves health and API documentation
type SystemHandler struct {
	baseHandler
	service string
	version string
	checks  map[string]HealthCheck
}

func NewSystemHandler(service, version string, checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{
		baseHandler: newBaseHandler("", 3*time.Second),
		service:     service,
		version:     version,
		checks:      checks,
	}
}

// Health reports process liveness and the state of each dependency
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Failure 503 {object} dto.APIResponse "A dependency is down"
// @Router /health [get]
func (h *SystemHandler) Health(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/health")
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	data := fiber.Map{
		"status":     status,
		"timestamp":  utils.UTCNow().Unix(),
		"version":    h.version,
		"service":    h.service,
		"components": components,
	}
	if status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    data,
			Error:   dto.ErrorDetail{Code: "SERVICE_DEGRADED"},
		})
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", data)
}

// SwaggerJSON serves the registered OpenAPI document
func (h *SystemHandler) SwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load Swagger documentation", "SWAGGER_LOAD_ERROR", nil)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(doc)
}
