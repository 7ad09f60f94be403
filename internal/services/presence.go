package services

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/sirupsen/logrus"
)

// PresenceService keeps users' online flag in step with their sockets and
// tells everyone else.
type PresenceService struct {
	Users UserStore
	Push  Pusher
	Log   logrus.FieldLogger

	now func() time.Time
}

func NewPresenceService(users UserStore, push Pusher) *PresenceService {
	return &PresenceService{Users: users, Push: push, Log: logrus.StandardLogger(), now: time.Now}
}

func (p *PresenceService) Online(ctx context.Context, userID string) error {
	if err := p.Users.Update(ctx, userID, map[string]any{"is_online": true}); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	p.Push.Broadcast(realtime.Message{
		Type: realtime.TypeUserOnline,
		Data: map[string]string{"user_id": userID},
	}, userID)
	return nil
}

func (p *PresenceService) Offline(ctx context.Context, userID string) error {
	now := p.now().UTC()
	if err := p.Users.Update(ctx, userID, map[string]any{"is_online": false, "last_seen": now}); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	p.Push.Broadcast(realtime.Message{
		Type: realtime.TypeUserOffline,
		Data: map[string]any{"user_id": userID, "last_seen": now},
	}, userID)
	return nil
}

// Dropped marks userID offline after the hub discarded its connection on a
// failed send. Its signature fits realtime.Hub.OnDrop.
func (p *PresenceService) Dropped(userID string) {
	if err := p.Offline(context.Background(), userID); err != nil {
		p.Log.WithError(err).WithField("user_id", userID).Warn("presence: mark dropped user offline failed")
	}
}
