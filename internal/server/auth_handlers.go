package server

import (
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/v1/users/register
// @Summary User signup
// @Description Register a new user account
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Signup request"
// @Success 201 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /users/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, "User registered successfully", user)
}

// Login handles POST /api/v1/users/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /users/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithToken(c, fiber.StatusOK, "Logged in successfully", res.Token, res.User)
}

// Logout handles POST /api/v1/users/logout
// @Summary Logout
// @Description Revoke the presented access token
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope
// @Router /users/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := middleware.ClaimsFrom(c)
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Logged out successfully", nil)
}

// RecoverPassword handles POST /api/v1/users/recover-password
// @Summary Request a password reset email
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.RecoverPasswordInput true "Account email"
// @Success 200 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Failure 502 {object} models.Envelope
// @Router /users/recover-password [post]
func (s *Server) RecoverPassword(c *fiber.Ctx) error {
	var req service.RecoverPasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RecoverPassword(c.UserContext(), req); err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Password reset email sent", nil)
}

// ResetPassword handles POST /api/v1/users/reset-password
// @Summary Reset a password with an emailed token
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.ResetPasswordInput true "Reset token and new password"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Router /users/reset-password [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req service.ResetPasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.ResetPassword(c.UserContext(), req); err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Password reset successfully", nil)
}

// RecoverWithAnswers handles POST /api/v1/users/recover-with-answers
// @Summary Reset a password with security answers
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.RecoverWithAnswersInput true "Security answers and new password"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 401 {object} models.Envelope
// @Router /users/recover-with-answers [post]
func (s *Server) RecoverWithAnswers(c *fiber.Ctx) error {
	var req service.RecoverWithAnswersInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.RecoverWithAnswers(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Password recovered successfully", user)
}

// ChangePassword handles POST /api/v1/users/change-password
// @Summary Change a password
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.ChangePasswordInput true "Old and new password"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 401 {object} models.Envelope
// @Router /users/change-password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.ChangePassword(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Password changed successfully", user)
}
