package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/simywang/Teambot/internal/model"
	"github.com/simywang/Teambot/internal/service"

	"github.com/gofiber/fiber/v2"
)

// defaultWebUser is the acting identity when X-User-Name is absent. The
// header is trusted as-is; there is no authentication on this surface.
const defaultWebUser = "Web User"

type LOIHandler struct {
	loiSvc *service.LOIService
}

func NewLOIHandler(loiSvc *service.LOIService) *LOIHandler {
	return &LOIHandler{loiSvc: loiSvc}
}

// GET /api/lois
func (h *LOIHandler) List(c *fiber.Ctx) error {
	conversationID := c.Query("conversationId")

	lois, err := h.loiSvc.List(c.Context(), conversationID)
	if err != nil {
		log.Printf("[LOI] list error: %v", err)
		return fail(c, 500, "Failed to fetch LOIs")
	}
	return ok(c, lois)
}

// GET /api/lois/:id
func (h *LOIHandler) GetByID(c *fiber.Ctx) error {
	loi, err := h.loiSvc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return loiError(c, err)
	}
	return ok(c, loi)
}

// POST /api/lois
func (h *LOIHandler) Create(c *fiber.Ctx) error {
	var req model.CreateLOIRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, "Invalid request body")
	}

	createdBy := actingUser(c)
	loi, err := h.loiSvc.Create(c.Context(), &req, createdBy)
	if err != nil {
		return loiError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "data": loi})
}

// PUT /api/lois/:id
func (h *LOIHandler) Update(c *fiber.Ctx) error {
	var patch model.LOIPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, 400, "Invalid request body")
	}

	modifiedBy := actingUser(c)
	loi, err := h.loiSvc.Update(c.Context(), c.Params("id"), &patch, modifiedBy, model.SourceWeb)
	if err != nil {
		return loiError(c, err)
	}
	return ok(c, loi)
}

// DELETE /api/lois/:id
func (h *LOIHandler) Delete(c *fiber.Ctx) error {
	deletedBy := actingUser(c)

	deleted, err := h.loiSvc.Delete(c.Context(), c.Params("id"), deletedBy)
	if err != nil {
		log.Printf("[LOI] delete error: %v", err)
		return fail(c, 500, "Failed to delete LOI")
	}
	if !deleted {
		return fail(c, 404, "LOI not found")
	}
	return c.JSON(fiber.Map{"success": true, "message": "LOI deleted successfully"})
}

// GET /api/lois/:id/history
func (h *LOIHandler) GetHistory(c *fiber.Ctx) error {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}

	history, err := h.loiSvc.GetHistory(c.Context(), c.Params("id"), limit)
	if err != nil {
		log.Printf("[LOI] history error: %v", err)
		return fail(c, 500, "Failed to fetch history")
	}
	return ok(c, history)
}

func actingUser(c *fiber.Ctx) string {
	if name := c.Get("X-User-Name"); name != "" {
		return name
	}
	return defaultWebUser
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
}

func loiError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrLOINotFound):
		return fail(c, 404, "LOI not found")
	case errors.Is(err, service.ErrMissingFields):
		return fail(c, 400, "Missing required fields")
	default:
		log.Printf("[LOI ERROR] %v", err)
		return fail(c, 500, "Internal server error")
	}
}
