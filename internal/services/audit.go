package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditRecorder appends audit log rows.
type AuditRecorder struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewAuditRecorder(db *gorm.DB, log logrus.FieldLogger) *AuditRecorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditRecorder{db: db, log: log}
}

// Entry describes one audited mutation.
type Entry struct {
	Action   models.AuditAction
	Entity   string
	EntityID string
	UserID   string
	Changes  any
}

// Record writes e. Changes is marshalled to JSON; nil is stored as a JSON
// null so the column is never SQL NULL.
func (a *AuditRecorder) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}
	row := models.AuditLog{
		Action:   e.Action,
		Entity:   e.Entity,
		EntityID: e.EntityID,
		UserID:   e.UserID,
		Changes:  datatypes.JSON(raw),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Log records e and only logs a failure. Audit writes never fail the
// request that triggered them.
func (a *AuditRecorder) Log(ctx context.Context, e Entry) {
	if a == nil {
		return
	}
	if err := a.Record(ctx, e); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"entity":    e.Entity,
			"entity_id": e.EntityID,
			"action":    e.Action,
		}).Warn("audit: record failed")
	}
}

// AuditFilter narrows List. Zero values match everything.
type AuditFilter struct {
	Entity   string
	EntityID string
	UserID   string
	Skip     int
	Limit    int
}

// List returns audit rows newest first.
func (a *AuditRecorder) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := a.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	var rows []models.AuditLog
	if err := q.Order("created_at DESC").Offset(f.Skip).Limit(clampLimit(f.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return rows, nil
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
