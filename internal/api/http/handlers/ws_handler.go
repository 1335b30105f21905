package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/transport"
	apperrors "github.com/spec-kit/live-support/pkg/util"
)

const (
	wsActorKey = "ws_actor_id"
	wsRoleKey  = "ws_actor_role"
)

// WSHandler upgrades authenticated clients to the notification channel. Each
// open socket is one presence session for its actor.
type WSHandler struct {
	hub *transport.Hub
}

// NewWSHandler constructs the handler.
func NewWSHandler(hub *transport.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade gates the WebSocket handshake; runs after auth middleware.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	c.Locals(wsActorKey, principal.User.ID)
	c.Locals(wsRoleKey, principal.Role)
	return c.Next()
}

// Serve handles the upgraded connection for its lifetime.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		actorID, ok := conn.Locals(wsActorKey).(string)
		role, roleOK := conn.Locals(wsRoleKey).(domain.Role)
		if !ok || !roleOK || actorID == "" {
			_ = conn.Close()
			return
		}
		h.hub.Serve(actorID, role, conn)
	})
}
