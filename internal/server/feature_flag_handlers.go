package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and their state for the current admin.
// @Summary List feature flags
// @Tags admin
// @Produce json
// @Success 200 {object} object{flags=[]featureflags.Flag}
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"flags": s.adminService.FeatureFlags(currentUserID(c)),
	})
}
