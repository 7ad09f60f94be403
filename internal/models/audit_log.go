package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditLog is an append-only mutation record.
type AuditLog struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Action    AuditAction    `gorm:"size:10;not null" json:"action"`
	Entity    string         `gorm:"size:30;not null;index" json:"entity"`
	EntityID  string         `gorm:"size:36;not null;index" json:"entity_id"`
	Changes   datatypes.JSON `json:"changes,omitempty"`
	UserID    string         `gorm:"size:36;not null;index" json:"user_id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (l *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
