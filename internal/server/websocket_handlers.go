package server

import (
	"errors"

	"sprout/internal/auth"
	"sprout/internal/middleware"
	"sprout/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// requireUpgrade rejects plain HTTP requests to websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// IssueWSTicket handles POST /api/v1/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a short-lived single-use ticket to pass as ?ticket= when opening the activity feed
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope
// @Failure 503 {object} models.Envelope
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return respondError(c, models.NewUnauthenticatedError("No token provided"))
	}
	ticket, err := s.tickets.Issue(c.UserContext(), claims)
	if errors.Is(err, auth.ErrTicketsUnavailable) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewExternalServiceError("Live notifications are unavailable", err))
	}
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return models.Respond(c, fiber.StatusOK, "Ticket issued", fiber.Map{
		"ticket":    ticket,
		"expiresIn": int(s.tickets.TTL().Seconds()),
	})
}

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
// @Summary Activity feed
// @Description Streams post, comment, vote and follow events for the caller
// @Tags realtime
// @Security BearerAuth
// @Param ticket query string false "Single-use ticket from /ws/ticket, used instead of the Authorization header"
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 || s.hub == nil {
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("websocket connected", "hub", s.hub.Name(), "user_id", uid)

		// ReadPump unregisters the client when the peer goes away.
		go client.WritePump()
		client.ReadPump()

		middleware.Logger.Info("websocket disconnected", "hub", s.hub.Name(), "user_id", uid)
	})
}
