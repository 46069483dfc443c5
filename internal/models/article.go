package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ArticleCategory is the controlled vocabulary for community articles.
type ArticleCategory string

const (
	CategoryTips       ArticleCategory = "tips"
	CategoryTutorial   ArticleCategory = "tutorial"
	CategoryExperience ArticleCategory = "pengalaman"
	CategoryDiscussion ArticleCategory = "diskusi"
	CategoryNews       ArticleCategory = "berita"
)

// ArticleCategories lists every accepted category.
var ArticleCategories = []ArticleCategory{
	CategoryTips, CategoryTutorial, CategoryExperience, CategoryDiscussion, CategoryNews,
}

// Valid reports whether c is a known category.
func (c ArticleCategory) Valid() bool {
	for _, known := range ArticleCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Labels are free-form tags stored as a JSON array column.
type Labels []string

// Value implements driver.Valuer.
func (l Labels) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *Labels) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("labels: unsupported column type")
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// Article is a community-published rich-text post.
type Article struct {
	ID         string          `gorm:"primaryKey;size:96" json:"id"`
	OwnerID    string          `gorm:"size:36;not null;index" json:"owner_id"`
	AuthorName string          `gorm:"size:100" json:"author_name"`
	Title      string          `gorm:"size:200;not null" json:"title"`
	Category   ArticleCategory `gorm:"size:32;not null;index" json:"category"`
	Labels     Labels          `gorm:"type:text" json:"labels"`
	Content    string          `gorm:"type:text" json:"content,omitempty"`
	Views      int             `gorm:"not null;default:0" json:"views"`
	CreatedAt  *time.Time      `gorm:"index;autoCreateTime:false" json:"created_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SearchText returns the fields matched by catalog search.
func (a Article) SearchText() []string {
	return []string{a.Title, a.AuthorName, string(a.Category), strings.Join(a.Labels, " ")}
}

// Field returns the categorical value used by catalog filters.
func (a Article) Field(name string) string {
	if name == "category" {
		return string(a.Category)
	}
	return ""
}

// Timestamp returns the creation time when one is recorded.
func (a Article) Timestamp() (time.Time, bool) {
	if a.CreatedAt == nil || a.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return *a.CreatedAt, true
}

// ViewCount returns the impression counter.
func (a Article) ViewCount() int {
	return a.Views
}
