package server

import (
	"context"

	"mainq/internal/catalog"
	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
)

// uploads is one page of everything a user published, per collection.
type uploads struct {
	Games    catalog.Page[models.Item]    `json:"games"`
	Labs     catalog.Page[models.Item]    `json:"labs"`
	Articles catalog.Page[models.Article] `json:"articles"`
}

func (s *Server) uploadsOf(ctx context.Context, ownerID string, page int) (*uploads, error) {
	var out uploads
	var err error
	if out.Games, err = s.itemSvc(models.KindGame).ListByOwner(ctx, ownerID, page); err != nil {
		return nil, err
	}
	if out.Labs, err = s.itemSvc(models.KindLab).ListByOwner(ctx, ownerID, page); err != nil {
		return nil, err
	}
	if out.Articles, err = s.articleService.ListByOwner(ctx, ownerID, page); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Params("id")

	profile, err := s.profileService.Get(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	items, err := s.uploadsOf(ctx, userID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"profile": profile,
		"uploads": items,
	})
}

// GetMyProfile handles GET /api/me. The profile document is created on the
// first visit.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Ensure(c.UserContext(), currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.Update(c.UserContext(), currentSession(c), service.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetMyItems handles GET /api/me/items
func (s *Server) GetMyItems(c *fiber.Ctx) error {
	sess := currentSession(c)
	items, err := s.uploadsOf(c.UserContext(), sess.UserID, parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}
