package server

import (
	"sprout/internal/models"
	"sprout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCheckoutSession handles POST /api/v1/payments/checkout-session
// @Summary Start a premium checkout
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CheckoutInput true "Amount in dollars"
// @Success 200 {object} models.Envelope{data=service.CheckoutResult}
// @Failure 502 {object} models.Envelope
// @Router /payments/checkout-session [post]
func (s *Server) CreateCheckoutSession(c *fiber.Ctx) error {
	var req service.CheckoutInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.paymentService.CreateCheckoutSession(c.UserContext(), actor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Checkout session created successfully", res)
}

// PaymentWebhook handles POST /api/v1/payments/webhook. The raw body is
// verified against the Stripe-Signature header before it is decoded.
// @Summary Payment processor webhook
// @Tags payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} models.Envelope
// @Router /payments/webhook [post]
func (s *Server) PaymentWebhook(c *fiber.Ctx) error {
	// The request body buffer is reused by fiber after the handler returns.
	payload := append([]byte(nil), c.Body()...)

	if err := s.paymentService.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
