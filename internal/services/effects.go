package services

import (
	"context"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
)

// Effects runs the side effects shared by every CRUD mutation: an audit
// row and a "<entity>_<verb>" broadcast. A nil *Effects does nothing.
type Effects struct {
	Audit *AuditRecorder
	Push  Pusher
}

func (e *Effects) Created(ctx context.Context, entity, id, actor string, record any) {
	e.apply(ctx, models.AuditCreate, "created", entity, id, actor, record, record)
}

// Updated audits changes and broadcasts the record as it is now.
func (e *Effects) Updated(ctx context.Context, entity, id, actor string, changes map[string]any, record any) {
	e.apply(ctx, models.AuditUpdate, "updated", entity, id, actor, changes, record)
}

func (e *Effects) Deleted(ctx context.Context, entity, id, actor string) {
	e.apply(ctx, models.AuditDelete, "deleted", entity, id, actor, nil, map[string]string{"id": id})
}

func (e *Effects) apply(ctx context.Context, action models.AuditAction, verb, entity, id, actor string, changes, payload any) {
	if e == nil {
		return
	}
	e.Audit.Log(ctx, Entry{Action: action, Entity: entity, EntityID: id, UserID: actor, Changes: changes})
	if e.Push != nil {
		e.Push.Broadcast(realtime.Message{Type: realtime.EntityEvent(entity, verb), Data: payload}, "")
	}
}
