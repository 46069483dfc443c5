package server

import (
	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

type articleRequest struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Labels   []string `json:"labels"`
	Content  string   `json:"content"`
}

func (r articleRequest) input() service.ArticleInput {
	return service.ArticleInput{
		Title:    r.Title,
		Category: r.Category,
		Labels:   r.Labels,
		Content:  r.Content,
	}
}

// ListArticles handles GET /api/articles (q, category, page, key).
func (s *Server) ListArticles(c *fiber.Ctx) error {
	page, err := s.articleService.Browse(c.UserContext(), service.ArticleBrowseInput{
		Search:    c.Query("q"),
		Category:  trimmed(c, "category"),
		Page:      parsePage(c),
		FilterKey: c.Query("key"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetArticle handles GET /api/articles/:id
func (s *Server) GetArticle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	article, err := s.articleService.Get(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if s.articleService.RecordView(ctx, article.ID).OK() {
		article.Views++
	}
	return c.JSON(article)
}

// CreateArticle handles POST /api/articles
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	var req articleRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	article, err := s.articleService.Create(c.UserContext(), currentSession(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

// UpdateArticle handles PUT /api/articles/:id
func (s *Server) UpdateArticle(c *fiber.Ctx) error {
	var req articleRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	article, err := s.articleService.Update(c.UserContext(), currentSession(c), c.Params("id"), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(article)
}

// DeleteArticle handles DELETE /api/articles/:id
func (s *Server) DeleteArticle(c *fiber.Ctx) error {
	if err := s.articleService.Delete(c.UserContext(), currentSession(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}
