package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence(t *testing.T) {
	d := setupDB(t)
	u := seedUser(t, d, "p@crm.test", models.RoleEmployee)
	users := repository.NewUserRepo(d)
	push := newPusher("someone-else")
	p := NewPresenceService(users, push)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = fixedClock(at)
	ctx := context.Background()

	require.NoError(t, p.Online(ctx, u.ID))
	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	require.NoError(t, p.Offline(ctx, u.ID))
	got, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	require.NotNil(t, got.LastSeen)
	assert.True(t, got.LastSeen.Equal(at))

	require.Len(t, push.broadcasts, 2)
	assert.Equal(t, realtime.TypeUserOnline, push.broadcasts[0].msg.Type)
	assert.Equal(t, u.ID, push.broadcasts[0].user, "the user is excluded from their own presence event")
	assert.Equal(t, realtime.TypeUserOffline, push.broadcasts[1].msg.Type)

	assert.Error(t, p.Online(ctx, "missing"))
}

type brokenConn struct{}

func (brokenConn) Send(realtime.Message) error { return errors.New("broken pipe") }
func (brokenConn) Close(int, string) error { return nil }

func TestPresence_DroppedConnectionGoesOffline(t *testing.T) {
	d := setupDB(t)
	u := seedUser(t, d, "drop@crm.test", models.RoleEmployee)
	users := repository.NewUserRepo(d)
	hub := realtime.NewHub(quietLog(), nil)
	p := NewPresenceService(users, hub)
	p.Log = quietLog()
	hub.OnDrop(p.Dropped)
	ctx := context.Background()

	hub.Connect(u.ID, brokenConn{})
	require.NoError(t, p.Online(ctx, u.ID))

	hub.Broadcast(realtime.Message{Type: "lead_created"}, "")

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	assert.NotNil(t, got.LastSeen)
	assert.False(t, hub.IsOnline(u.ID))
}
