package server

import (
	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListComments handles GET /api/{games|labs|articles}/:id/comments
func (s *Server) ListComments(parentType models.ParentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		comments, err := s.commentService.List(c.UserContext(), parentType, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(comments)
	}
}

// CreateComment handles POST /api/{games|labs|articles}/:id/comments
func (s *Server) CreateComment(parentType models.ParentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Body string `json:"body"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}

		comment, err := s.commentService.Create(c.UserContext(), currentSession(c), service.CreateCommentInput{
			ParentType: parentType,
			ParentID:   c.Params("id"),
			Body:       req.Body,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	}
}
