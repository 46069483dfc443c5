package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"mainq/internal/cache"
	"mainq/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for accounts and profiles.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	IsAdmin(ctx context.Context, id string) (bool, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	SetEmailVerified(ctx context.Context, id string) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, seed *models.Profile) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile *models.Profile, renameAuthor bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("email is already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsAdmin always reads the primary so a revoked flag takes effect immediately.
func (r *userRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("is_admin").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, models.NewInternalError(err)
	}
	return user.IsAdmin, nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id string, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) SetEmailVerified(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("email_verified", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(userID), &profile, cache.ProfileTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Profile", userID)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile merge-upserts seed: a missing profile is created from it, an
// existing one only has its empty fields filled in. Concurrent first calls
// for the same user converge on one row.
func (r *userRepository) EnsureProfile(ctx context.Context, seed *models.Profile) (*models.Profile, error) {
	var out models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := *seed
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", seed.UserID).First(&out).Error; err != nil {
			return err
		}

		changed := false
		if out.DisplayName == "" && seed.DisplayName != "" {
			out.DisplayName = seed.DisplayName
			changed = true
		}
		if out.PhotoURL == "" && seed.PhotoURL != "" {
			out.PhotoURL = seed.PhotoURL
			changed = true
		}
		if out.Bio == "" && seed.Bio != "" {
			out.Bio = seed.Bio
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.ProfileKey(seed.UserID))
	return &out, nil
}

// UpdateProfile saves profile. With renameAuthor the new display name is
// copied onto every item and article the user owns, atomically.
func (r *userRepository) UpdateProfile(ctx context.Context, profile *models.Profile, renameAuthor bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile.UpdatedAt = time.Now().UTC()
		if err := tx.Save(profile).Error; err != nil {
			return err
		}
		if !renameAuthor {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", profile.UserID).
			Update("display_name", profile.DisplayName).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Item{}).Where("owner_id = ?", profile.UserID).
			UpdateColumn("author_name", profile.DisplayName).Error; err != nil {
			return err
		}
		return tx.Model(&models.Article{}).Where("owner_id = ?", profile.UserID).
			UpdateColumn("author_name", profile.DisplayName).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.ProfileKey(profile.UserID))
	if renameAuthor {
		cache.InvalidateCatalogs(ctx)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
