package server

import (
	"mainq/internal/catalog"
	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

type itemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Class       string `json:"class"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
}

func (r itemRequest) input() service.ItemInput {
	return service.ItemInput{
		Title:       r.Title,
		Description: r.Description,
		Class:       r.Class,
		Subject:     r.Subject,
		Content:     r.Content,
	}
}

// GetCatalogOptions handles GET /api/catalog/options
func (s *Server) GetCatalogOptions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"classes":    models.Classes,
		"subjects":   models.Subjects,
		"categories": models.ArticleCategories,
		"windows":    []string{catalog.Weekly.String(), catalog.Monthly.String(), catalog.All},
	})
}

// ListItems handles GET /api/games and GET /api/labs.
// Query: q, class (games only), subject, page, key (filter key of the page
// the caller is on; a mismatch resets to page 1).
func (s *Server) ListItems(kind models.ItemKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := s.itemSvc(kind).Browse(c.UserContext(), service.BrowseInput{
			Search:    c.Query("q"),
			Class:     trimmed(c, "class"),
			Subject:   trimmed(c, "subject"),
			Page:      parsePage(c),
			FilterKey: c.Query("key"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	}
}

// GetPopular handles GET /api/popular?kind=game|lab&window=weekly|monthly|all
func (s *Server) GetPopular(c *fiber.Ctx) error {
	kind := models.KindGame
	if raw := c.Query("kind"); raw != "" {
		parsed, ok := models.ParseItemKind(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("kind must be game or lab"))
		}
		kind = parsed
	}

	window, err := catalog.ParseWindow(c.Query("window"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	page, err := s.itemSvc(kind).Popular(c.UserContext(), service.PopularInput{
		Window:    window,
		Page:      parsePage(c),
		FilterKey: c.Query("key"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"kind":   kind,
		"window": window.String(),
		"result": page,
	})
}

// GetItem handles GET /api/games/:id and GET /api/labs/:id. Every detail
// read counts as a view; a failed count never fails the read.
func (s *Server) GetItem(kind models.ItemKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		svc := s.itemSvc(kind)

		item, err := svc.Get(ctx, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if svc.RecordView(ctx, item.ID).OK() {
			item.Views++
		}
		return c.JSON(item)
	}
}

// CreateItem handles POST /api/games and POST /api/labs
func (s *Server) CreateItem(kind models.ItemKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req itemRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}

		item, err := s.itemSvc(kind).Create(c.UserContext(), currentSession(c), req.input())
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// UpdateItem handles PUT /api/games/:id and PUT /api/labs/:id
func (s *Server) UpdateItem(kind models.ItemKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req itemRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}

		item, err := s.itemSvc(kind).Update(c.UserContext(), currentSession(c), c.Params("id"), req.input())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(item)
	}
}

// DeleteItem handles DELETE /api/games/:id and DELETE /api/labs/:id
func (s *Server) DeleteItem(kind models.ItemKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.itemSvc(kind).Delete(c.UserContext(), currentSession(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Deleted"})
	}
}
