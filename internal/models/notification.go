package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifyLeadUpdated     NotificationType = "LEAD_UPDATED"
	NotifyLeadAssigned    NotificationType = "LEAD_ASSIGNED"
	NotifyLeadConverted   NotificationType = "LEAD_CONVERTED"
	NotifyAccountAssigned NotificationType = "ACCOUNT_ASSIGNED"
	NotifyActivityAdded   NotificationType = "ACTIVITY_ADDED"
	NotifyMention         NotificationType = "MENTION"
	NotifySystem          NotificationType = "SYSTEM"
)

// Notification is a user facing event. Only IsRead ever changes.
type Notification struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	UserID    string            `gorm:"size:36;not null;index:idx_notifications_user_read" json:"user_id"`
	Type      NotificationType  `gorm:"size:30;not null" json:"type"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	IsRead    bool              `gorm:"not null;index:idx_notifications_user_read" json:"is_read"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
