package server

import (
	"errors"
	"strings"

	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respondError renders err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// parsePage reads the 1-based page query parameter. Anything below 1 is page 1.
func parsePage(c *fiber.Ctx) int {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return 1
	}
	return page
}

// parseKind reads the item kind route parameter, writing a 404 for anything else.
func parseKind(c *fiber.Ctx) (models.ItemKind, error) {
	kind, ok := models.ParseItemKind(c.Params("kind"))
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Collection", c.Params("kind")))
		return "", errResponseWritten
	}
	return kind, nil
}

// parseNotificationID extracts the numeric notification id.
func parseNotificationID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid notification ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

func (s *Server) itemSvc(kind models.ItemKind) *service.ItemService {
	return s.itemServices[kind]
}

// trimmed returns a trimmed query parameter.
func trimmed(c *fiber.Ctx, key string) string {
	return strings.TrimSpace(c.Query(key))
}
