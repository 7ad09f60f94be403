package handlers

import (
	"maps"
	"net/http"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/diewo77/go-crm/internal/services"
)

// OnlineLister reports the users with a live connection.
type OnlineLister interface {
	Online() []string
}

type UserHandler struct {
	users   *repository.UserRepo
	gate    Authorizer
	online  OnlineLister
	effects *services.Effects
}

func NewUserHandler(users *repository.UserRepo, g Authorizer, online OnlineLister, effects *services.Effects) *UserHandler {
	return &UserHandler{users: users, gate: g, online: online, effects: effects}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	users, err := h.users.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

// Online lists users currently connected over WebSocket.
func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListByIDs(r.Context(), h.online.Online())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

// Update edits a profile. Users edit themselves; only admins edit others
// or change role and status.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := h.users.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.gate.Authorize(ctx, gate.ActionUpdate, models.EntityUser, target); err != nil {
		writeError(w, r, err)
		return
	}
	var in models.UserUpdate
	if !decode(w, r, &in) {
		return
	}
	actor := actorID(r)
	if (in.Role != nil || in.Status != nil) && !h.gate.IsAdmin(ctx, actor) {
		writeError(w, r, services.ErrForbidden)
		return
	}
	fields := in.Fields()
	if len(fields) > 0 {
		stored := fields
		// A pending code only lives while the account is INACTIVE.
		if in.Status != nil && *in.Status != models.UserInactive {
			stored = maps.Clone(fields)
			stored["otp"] = nil
		}
		if err := h.users.Update(ctx, target.ID, stored); err != nil {
			writeError(w, r, err)
			return
		}
		if in.Role != nil {
			h.gate.InvalidateUser(target.ID)
		}
		if target, err = h.users.FindByID(ctx, target.ID); err != nil {
			writeError(w, r, err)
			return
		}
		h.effects.Updated(ctx, models.EntityUser, target.ID, actor, fields, target)
	}
	httpx.JSON(w, http.StatusOK, target)
}
