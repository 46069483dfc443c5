package server

import (
	"mainq/internal/middleware"
	"mainq/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListPages handles GET /api/pages
func (s *Server) ListPages(c *fiber.Ctx) error {
	return c.JSON(s.pages.List())
}

// GetPage handles GET /api/pages/:slug
func (s *Server) GetPage(c *fiber.Ctx) error {
	page, ok := s.pages.Get(c.Params("slug"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Page", c.Params("slug")))
	}
	adFree, _ := c.Locals(middleware.AdFreeLocal).(bool)
	return c.JSON(fiber.Map{
		"page":    page,
		"ad_free": adFree,
	})
}
