package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// TokenAuthenticator resolves a bearer token to a user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Presence flips a user's online state.
type Presence interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// WSHandler upgrades authenticated clients and registers them with the hub.
type WSHandler struct {
	auth     TokenAuthenticator
	hub      *realtime.Hub
	presence Presence
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewWSHandler accepts browser origins from allowed; "*" allows any.
// Requests without an Origin header are always accepted.
func NewWSHandler(a TokenAuthenticator, hub *realtime.Hub, p Presence, allowed []string, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &WSHandler{auth: a, hub: hub, presence: p, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
	}
	return h
}

// Serve handles GET /ws/{token} and GET /ws?token=. A bad token is
// answered with close code 1008 after the upgrade.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("ws: upgrade failed")
		return
	}
	conn := realtime.NewWSConn(ws)

	// Presence updates outlive the hijacked request.
	ctx := context.WithoutCancel(r.Context())
	user, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		_ = conn.Close(websocket.ClosePolicyViolation, "Invalid token")
		return
	}

	log := h.log.WithField("user_id", user.ID)
	h.hub.Connect(user.ID, conn)
	if err := h.presence.Online(ctx, user.ID); err != nil {
		log.WithError(err).Warn("ws: mark online failed")
	}
	log.Info("ws: connected")

	err = conn.Run()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.WithError(err).Debug("ws: read loop ended")
	}

	// A replaced socket leaves the user online through its successor.
	if h.hub.Release(user.ID, conn) {
		if err := h.presence.Offline(ctx, user.ID); err != nil {
			log.WithError(err).Warn("ws: mark offline failed")
		}
	}
	_ = conn.Close(websocket.CloseNormalClosure, "")
	log.Info("ws: disconnected")
}
