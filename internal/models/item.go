// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// ItemKind discriminates the two kinds of uploaded interactive content.
type ItemKind string

const (
	KindGame ItemKind = "game"
	KindLab  ItemKind = "lab"
)

// ParseItemKind accepts singular or plural forms ("game", "games").
func ParseItemKind(raw string) (ItemKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "game", "games":
		return KindGame, true
	case "lab", "labs":
		return KindLab, true
	}
	return "", false
}

// Plural returns the collection name used in routes.
func (k ItemKind) Plural() string {
	return string(k) + "s"
}

// Item is a published game or lab simulation. Content holds the full,
// self-contained HTML payload and is only loaded on detail reads.
type Item struct {
	ID          string     `gorm:"primaryKey;size:96" json:"id"`
	Kind        ItemKind   `gorm:"size:8;not null;index" json:"kind"`
	OwnerID     string     `gorm:"size:36;not null;index" json:"owner_id"`
	AuthorName  string     `gorm:"size:100" json:"author_name"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Class       string     `gorm:"size:32;index" json:"class,omitempty"`
	Subject     string     `gorm:"size:64;index" json:"subject"`
	Content     string     `gorm:"type:text" json:"content,omitempty"`
	Views       int        `gorm:"not null;default:0" json:"views"`
	CreatedAt   *time.Time `gorm:"index;autoCreateTime:false" json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName maps both kinds onto one collection.
func (Item) TableName() string {
	return "published_items"
}

// SearchText returns the fields matched by catalog search.
func (i Item) SearchText() []string {
	return []string{i.Title, i.Description, i.AuthorName, i.Subject, i.Class}
}

// Field returns the categorical value used by catalog filters.
func (i Item) Field(name string) string {
	switch name {
	case "class":
		return i.Class
	case "subject":
		return i.Subject
	case "kind":
		return string(i.Kind)
	}
	return ""
}

// Timestamp returns the creation time when one is recorded.
func (i Item) Timestamp() (time.Time, bool) {
	if i.CreatedAt == nil || i.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return *i.CreatedAt, true
}

// ViewCount returns the impression counter.
func (i Item) ViewCount() int {
	return i.Views
}

// Classes lists the grade levels a game can target.
var Classes = []string{
	"Kelas 1", "Kelas 2", "Kelas 3", "Kelas 4", "Kelas 5", "Kelas 6",
	"Kelas 7", "Kelas 8", "Kelas 9", "Kelas 10", "Kelas 11", "Kelas 12",
}

// Subjects lists the subjects games and labs are filed under.
var Subjects = []string{
	"Matematika", "IPA", "IPS", "Fisika", "Kimia", "Biologi",
	"Bahasa Indonesia", "Bahasa Inggris", "PPKn", "Seni Budaya",
	"PJOK", "Informatika", "Lainnya",
}

// Contains reports whether value is one of options.
func Contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
