package service

import (
	"context"
	"net/url"
	"strings"

	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/session"
	"mainq/internal/validation"
)

type ProfileService struct {
	userRepo repository.UserRepository
}

type UpdateProfileInput struct {
	DisplayName string
	Bio         string
	PhotoURL    string
}

func NewProfileService(userRepo repository.UserRepository) *ProfileService {
	return &ProfileService{userRepo: userRepo}
}

// Ensure returns the caller's profile, creating it from the session on the
// first visit and filling blank fields on later ones.
func (s *ProfileService) Ensure(ctx context.Context, sess *session.Session) (*models.Profile, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return s.userRepo.EnsureProfile(ctx, &models.Profile{
		UserID:      sess.UserID,
		DisplayName: sess.DisplayName,
		PhotoURL:    sess.PhotoURL,
	})
}

// Get returns the public profile of userID. Users who never opened their
// profile page get one derived from the account, without storing it.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}, nil
}

// Update edits the caller's profile. A new display name is propagated to the
// author field of everything the caller published.
func (s *ProfileService) Update(ctx context.Context, sess *session.Session, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.Ensure(ctx, sess)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.DisplayName)
	if err := validation.ValidateDisplayName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	bio := strings.TrimSpace(in.Bio)
	if runeLen(bio) > models.MaxBioLength {
		return nil, models.NewValidationError("Bio too long (max 300 characters)")
	}
	photo := strings.TrimSpace(in.PhotoURL)
	if photo != "" && !isHTTPURL(photo) {
		return nil, models.NewValidationError("Photo URL must be an http(s) URL")
	}

	rename := name != profile.DisplayName
	profile.DisplayName = name
	profile.Bio = bio
	profile.PhotoURL = photo
	if err := s.userRepo.UpdateProfile(ctx, profile, rename); err != nil {
		return nil, err
	}
	return profile, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
