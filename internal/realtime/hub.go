// Package realtime tracks live WebSocket connections per user and pushes
// messages to them.
package realtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is one live client connection. Send must be safe for concurrent use.
type Conn interface {
	Send(msg Message) error
	Close(code int, reason string) error
}

// Gauge receives the number of registered connections after each change.
type Gauge interface {
	SetConnections(n int)
}

// Hub maps each user to at most one connection; the last Connect wins.
// Sends run outside the lock on a snapshot of the registry.
type Hub struct {
	log   logrus.FieldLogger
	gauge Gauge

	mu     sync.RWMutex
	conns  map[string]Conn
	onDrop func(userID string)
}

// NewHub builds an empty registry. gauge may be nil.
func NewHub(log logrus.FieldLogger, gauge Gauge) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{log: log, gauge: gauge, conns: make(map[string]Conn)}
}

// Connect registers conn for userID and returns the connection it replaced,
// if any. The replaced connection is neither closed nor notified.
func (h *Hub) Connect(userID string, conn Conn) Conn {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = conn
	n := len(h.conns)
	h.mu.Unlock()

	if prev != nil && prev != conn {
		// TODO: close the evicted socket once clients handle a replaced-session close code.
		h.log.WithField("user_id", userID).Warn("realtime: connection replaced, previous socket left open")
	}
	h.report(n)
	if prev == conn {
		return nil
	}
	return prev
}

// OnDrop registers fn to run whenever the hub itself unregisters a
// connection because a send to it failed. fn runs outside the lock.
func (h *Hub) OnDrop(fn func(userID string)) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

// drop unregisters a connection whose send failed and reports it.
func (h *Hub) drop(userID string, conn Conn) {
	if !h.Release(userID, conn) {
		return
	}
	h.mu.RLock()
	fn := h.onDrop
	h.mu.RUnlock()
	if fn != nil {
		fn(userID)
	}
}

// Disconnect drops whatever connection userID has.
func (h *Hub) Disconnect(userID string) {
	h.mu.Lock()
	delete(h.conns, userID)
	n := len(h.conns)
	h.mu.Unlock()
	h.report(n)
}

// Release drops userID only while conn is still its registered connection.
// It reports whether conn was removed.
func (h *Hub) Release(userID string, conn Conn) bool {
	h.mu.Lock()
	cur, ok := h.conns[userID]
	removed := ok && cur == conn
	if removed {
		delete(h.conns, userID)
	}
	n := len(h.conns)
	h.mu.Unlock()
	if removed {
		h.report(n)
	}
	return removed
}

// SendTo delivers msg to userID. It is a no-op for users without a
// connection. A failed send unregisters the connection and returns the error.
func (h *Hub) SendTo(userID string, msg Message) error {
	h.mu.RLock()
	conn := h.conns[userID]
	h.mu.RUnlock()
	if conn == nil {
		return nil
	}
	if err := conn.Send(msg); err != nil {
		h.drop(userID, conn)
		return fmt.Errorf("send %s to %s: %w", msg.Type, userID, err)
	}
	return nil
}

// Broadcast sends msg to every connection except exclude's, best effort.
// Connections that fail are unregistered. It returns how many sends succeeded.
func (h *Hub) Broadcast(msg Message, exclude string) int {
	type target struct {
		user string
		conn Conn
	}
	h.mu.RLock()
	targets := make([]target, 0, len(h.conns))
	for user, conn := range h.conns {
		if user != exclude {
			targets = append(targets, target{user, conn})
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		if err := t.conn.Send(msg); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{"user_id": t.user, "type": msg.Type}).
				Debug("realtime: broadcast send failed, dropping connection")
			h.drop(t.user, t.conn)
			continue
		}
		delivered++
	}
	return delivered
}

// IsOnline reports whether userID has a registered connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// Online returns the connected user ids, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes and unregisters every connection. Used on shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]Conn)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close(code, reason)
	}
	h.report(0)
}

func (h *Hub) report(n int) {
	if h.gauge != nil {
		h.gauge.SetConnections(n)
	}
}
