package server

import (
	"sprout/internal/models"
	"sprout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/v1/profile/me
// @Summary Current user's profile
// @Tags profile
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=models.Profile}
// @Router /profile/me [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "User profile fetched successfully", profile)
}

// UpdateProfile handles PATCH /api/v1/profile/me
// @Summary Update the current user's profile
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} models.Envelope{data=models.Profile}
// @Failure 400 {object} models.Envelope
// @Router /profile/me [patch]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), actor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, "Profile updated successfully", profile)
}

// ToggleFollow handles POST /api/v1/profile/follow/:id
// @Summary Follow or unfollow a user
// @Tags profile
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=service.FollowResult}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /profile/follow/{id} [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.profileService.ToggleFollow(c.UserContext(), actor(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return models.Respond(c, fiber.StatusOK, res.Message, res)
}
