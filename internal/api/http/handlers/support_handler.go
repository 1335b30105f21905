package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/live-support/internal/api/dto"
	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/matching"
	apperrors "github.com/spec-kit/live-support/pkg/util"
)

// SupportHandler manages support request endpoints.
type SupportHandler struct {
	engine *matching.Engine
}

// NewSupportHandler constructs the handler.
func NewSupportHandler(engine *matching.Engine) *SupportHandler {
	return &SupportHandler{engine: engine}
}

// CreateRequest POST /support/requests. Returns immediately; matching runs
// asynchronously.
func (h *SupportHandler) CreateRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	request, err := h.engine.CreateRequest(c.Context(), principal.User.ID, req.Kind, req.PreferredAgentID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.NewRequestSnapshot(request)})
}

// GetRequest GET /support/requests/:id.
func (h *SupportHandler) GetRequest(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.engine.GetRequestStatus(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestSnapshot(request)})
}

// CancelRequest POST /support/requests/:id/cancel.
func (h *SupportHandler) CancelRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	cancelled, request, err := h.engine.CancelRequest(c.Context(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"cancelled": cancelled,
		"request":   dto.NewRequestSnapshot(request),
	}})
}

// Respond POST /support/requests/:id/respond. Agent accepts or rejects.
func (h *SupportHandler) Respond(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	request, err := h.engine.RespondToRequest(c.Context(), c.Params("id"), principal.User.ID, req.Accept)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestSnapshot(request)})
}

// Complete POST /support/requests/:id/complete. Either party ends the match.
func (h *SupportHandler) Complete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.engine.CompleteRequest(c.Context(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestSnapshot(request)})
}

// OnlineAgents GET /support/agents/online.
func (h *SupportHandler) OnlineAgents(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	agents, err := h.engine.GetOnlineAgents(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.UserSummary, 0, len(agents))
	for _, agent := range agents {
		items = append(items, dto.UserSummary{
			ID:    agent.ID,
			Name:  agent.Name,
			Email: agent.Email,
			Role:  agent.Role,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
