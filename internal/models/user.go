package models

import "time"

// Auth providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// User is the authentication account. IsAdmin is the source of the admin claim.
type User struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Email         string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password      string    `gorm:"size:100" json:"-"`
	Provider      string    `gorm:"size:16;not null;default:password" json:"provider"`
	DisplayName   string    `gorm:"size:100" json:"display_name"`
	PhotoURL      string    `gorm:"size:500" json:"photo_url,omitempty"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	IsAdmin       bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MaxBioLength caps a profile bio in runes.
const MaxBioLength = 300

// Profile is the public profile document, created lazily on the owner's first visit.
type Profile struct {
	UserID      string    `gorm:"primaryKey;size:36" json:"user_id"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	Bio         string    `gorm:"size:1200" json:"bio"`
	PhotoURL    string    `gorm:"size:500" json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
