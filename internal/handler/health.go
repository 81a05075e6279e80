package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readyCheckTimeout = 2 * time.Second

// pinger is the database dependency of the readiness check. *pgxpool.Pool
// satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness endpoints. Liveness only
// says the process is up; readiness also requires a reachable database,
// since every LOI operation needs it.
type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /api/health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "alive"})
}

// GET /api/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.Status(503).JSON(fiber.Map{"success": false, "status": "degraded", "error": "database unreachable"})
	}
	return c.JSON(fiber.Map{"success": true, "status": "ready"})
}
