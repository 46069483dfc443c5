package models

import "time"

// ParentType names the collection a comment thread hangs off.
type ParentType string

const (
	ParentGame    ParentType = "game"
	ParentLab     ParentType = "lab"
	ParentArticle ParentType = "article"
)

// ParentForKind maps an item kind onto its comment parent type.
func ParentForKind(k ItemKind) ParentType {
	return ParentType(k)
}

// Comment is an append-only remark on a game, lab or article.
type Comment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ParentType  ParentType `gorm:"size:16;not null;index:idx_comment_parent" json:"parent_type"`
	ParentID    string     `gorm:"size:96;not null;index:idx_comment_parent" json:"parent_id"`
	OwnerID     string     `gorm:"size:36;not null;index" json:"owner_id"`
	AuthorName  string     `gorm:"size:100" json:"author_name"`
	AuthorPhoto string     `gorm:"size:500" json:"author_photo,omitempty"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
