package server

import (
	"strings"

	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminListItems handles GET /api/admin/items?collection=game|lab|article&q=&page=&key=
func (s *Server) AdminListItems(c *fiber.Ctx) error {
	in := service.AdminListInput{
		Search:    c.Query("q"),
		Page:      parsePage(c),
		FilterKey: c.Query("key"),
	}

	collection := strings.ToLower(trimmed(c, "collection"))
	if collection == "article" || collection == "articles" {
		page, err := s.articleService.AdminList(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"collection": "article", "result": page})
	}

	kind := models.KindGame
	if collection != "" {
		parsed, ok := models.ParseItemKind(collection)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("collection must be game, lab or article"))
		}
		kind = parsed
	}

	page, err := s.itemSvc(kind).AdminList(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"collection": kind, "result": page})
}

// AdminDeleteItem handles DELETE /api/admin/items/:kind/:id. The comment
// thread of the deleted entry goes with it.
func (s *Server) AdminDeleteItem(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess := currentSession(c)
	id := c.Params("id")

	raw := strings.ToLower(c.Params("kind"))
	if raw == "article" || raw == "articles" {
		if err := s.articleService.Delete(ctx, sess, id); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Deleted"})
	}

	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	if err := s.itemSvc(kind).Delete(ctx, sess, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}
