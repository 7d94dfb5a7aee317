package handler

import (
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/pkg/serverutils"
	"ai-queryrefine-be/internal/service"
	internalWS "ai-queryrefine-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// DisambiguationHandler upgrades a chat session to a websocket that receives
// disambiguation prompts and sends the user's picks back.
type DisambiguationHandler struct {
	service service.IQueryService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewDisambiguationHandler(service service.IQueryService, hub *internalWS.Hub, log logger.ILogger) *DisambiguationHandler {
	return &DisambiguationHandler{
		service: service,
		hub:     hub,
		logger:  log,
	}
}

// ServeWs handles websocket requests from the peer. JwtMiddleware has already set user_id.
func (h *DisambiguationHandler) ServeWs(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	allowed, err := h.service.CanJoin(c.UserContext(), userID, sessionID)
	if err != nil {
		return err
	}
	if !allowed {
		h.logger.Warn("DisambiguationHandler", "Rejected foreign session", map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
		})
		return fiber.NewError(fiber.StatusForbidden, "Session belongs to another user")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("DisambiguationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID, "session_id": sessionID})
		internalWS.ServeWs(h.hub, conn, sessionID, userID)
		h.logger.Info("DisambiguationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID, "session_id": sessionID})
	})(c)
}

func (h *DisambiguationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/query/v1/ws", serverutils.JwtMiddleware, h.ServeWs)
}
