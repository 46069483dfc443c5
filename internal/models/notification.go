package models

import "time"

// NotificationType enumerates what produced a notification.
type NotificationType string

const (
	NotificationComment NotificationType = "comment"
)

// Notification is a per-recipient record. Only Read is ever updated.
type Notification struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	RecipientID  string           `gorm:"size:36;not null;index" json:"recipient_id"`
	SenderName   string           `gorm:"size:100" json:"sender_name"`
	Type         NotificationType `gorm:"size:16;not null" json:"type"`
	ContentTitle string           `gorm:"size:200" json:"content_title"`
	Link         string           `gorm:"size:300" json:"link"`
	Read         bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt    time.Time        `gorm:"index" json:"created_at"`
}
