package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/live-support/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes. Readiness covers
// the two stores matching depends on: postgres holds the requests, redis the
// handoff codes.
type HealthHandler struct {
	serviceName  string
	version      string
	startedAt    time.Time
	requestStore *persistence.Postgres
	codeStore    *persistence.Redis
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, requestStore *persistence.Postgres, codeStore *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName:  serviceName,
		version:      version,
		startedAt:    time.Now(),
		requestStore: requestStore,
		codeStore:    codeStore,
	}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "up",
		"service": h.serviceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Ready reports whether the backing stores are reachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{
		"request_store": h.check(ctx, h.requestStore.Ping),
		"code_store":    h.check(ctx, h.codeStore.Ping),
	}
	for _, result := range checks {
		if result != "up" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "DEPENDENCY_UNAVAILABLE",
					"message": "one or more dependencies unavailable",
					"details": checks,
				},
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": checks,
	})
}

func (h *HealthHandler) check(ctx context.Context, ping func(context.Context) error) string {
	if err := ping(ctx); err != nil {
		return err.Error()
	}
	return "up"
}
