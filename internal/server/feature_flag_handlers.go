package server

import (
	"sprout/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flag snapshot
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := actor(c).ID

	if s.featureFlags == nil {
		return models.Respond(c, fiber.StatusOK, "Feature flags fetched successfully", fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return models.Respond(c, fiber.StatusOK, "Feature flags fetched successfully", fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
