package models

import "time"

// NotificationType names the event a notification reports.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Notification is an inbox entry owned by UserID.
type Notification struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"not null;index" json:"user_id"`
	Type          NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Content       string           `gorm:"size:255" json:"content"`
	RelatedUserID *uint            `json:"related_user_id,omitempty"`
	RelatedUser   *User            `gorm:"foreignKey:RelatedUserID" json:"related_user,omitempty"`
	RelatedPostID *uint            `json:"related_post_id,omitempty"`
	IsRead        bool             `gorm:"not null;index" json:"is_read"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}
