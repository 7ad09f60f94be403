// Package models defines the GORM models of the CRM domain.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the string UUID primary key and timestamps shared by most models.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (b *Base) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Entity names, shared by audit rows, broadcasts and permissions.
const (
	EntityUser         = "user"
	EntityAccount      = "account"
	EntityContact      = "contact"
	EntityLead         = "lead"
	EntityDeal         = "deal"
	EntityActivity     = "activity"
	EntityNotification = "notification"
	EntityAuditLog     = "audit_log"
)

// Ownable is implemented by records scoped to an owning user.
type Ownable interface {
	GetOwnerID() string
}

// All lists every model for AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{},
		&Account{},
		&Contact{},
		&Lead{},
		&Deal{},
		&Activity{},
		&Notification{},
		&AuditLog{},
	}
}
