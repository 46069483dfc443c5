// Package bootstrap establishes the process-wide database and Redis handles.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"mainq/internal/cache"
	"mainq/internal/config"
	"mainq/internal/database"
	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/seed"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultRootEmail = "root@mainq.local"
	rootDisplayName  = "Admin MAIN Q"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo content.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis, ensures the development root admin
// and optionally seeds demo data. A nil Redis client means Redis was unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the root admin account in development
// when DEV_BOOTSTRAP_ROOT is enabled. It is a no-op everywhere else.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = defaultRootEmail
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	var rootID string
	err = db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:            uuid.NewString(),
				Email:         email,
				Password:      string(hashed),
				Provider:      models.ProviderPassword,
				DisplayName:   rootDisplayName,
				EmailVerified: true,
				IsAdmin:       true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			return tx.Create(&models.Profile{UserID: root.ID, DisplayName: rootDisplayName}).Error
		case findErr != nil:
			return findErr
		default:
			rootID = root.ID
			return tx.Model(&models.User{}).Where("id = ?", root.ID).
				Updates(map[string]any{"is_admin": true, "password": string(hashed)}).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", "email", email, "existing_user_id", rootID)
	return nil
}

func seedIfEmpty(db *gorm.DB) error {
	var n int64
	if err := db.Model(&models.Item{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := seed.NewSeeder(db).Run(seed.DefaultOptions())
	return err
}
