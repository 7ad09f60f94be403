package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db      *gorm.DB
	effects *services.Effects
	notify  *services.NotificationService
}

func NewActivityHandler(db *gorm.DB, effects *services.Effects, notify *services.NotificationService) *ActivityHandler {
	return &ActivityHandler{db: db, effects: effects, notify: notify}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := h.db.WithContext(r.Context()).Model(&models.Activity{})
	for _, col := range []string{"account_id", "lead_id", "deal_id", "user_id", "type"} {
		if v := r.URL.Query().Get(col); v != "" {
			q = q.Where(col+" = ?", v)
		}
	}
	var acts []models.Activity
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&acts).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acts)
}

// Create logs an activity against at most one account, lead or deal. The
// owner of a linked lead or deal is notified unless they logged it.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ActivityCreate
	if !decode(w, r, &in) {
		return
	}
	link, ok := in.Link()
	if !ok {
		writeError(w, r, invalid("an activity links to at most one of account_id, lead_id, deal_id"))
		return
	}
	ctx := r.Context()
	owner, label, err := h.target(ctx, link)
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := actorID(r)
	a := models.Activity{Type: in.Type, Subject: in.Subject, Description: in.Description, UserID: actor}
	a.SetLink(link)
	if err := h.db.WithContext(ctx).Create(&a).Error; err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Created(ctx, models.EntityActivity, a.ID, actor, &a)

	if owner != "" && owner != actor {
		h.notify.NotifyQuietly(ctx, services.NotifyInput{
			UserID:   owner,
			Type:     models.NotifyActivityAdded,
			Title:    "New activity",
			Message:  fmt.Sprintf("%s logged on %s: %s", a.Type, label, a.Subject),
			Metadata: map[string]any{"activity_id": a.ID, string(link.Kind) + "_id": link.ID},
		})
	}
	httpx.JSON(w, http.StatusCreated, a)
}

// target checks that the linked record exists and returns the owner to
// notify, if any.
func (h *ActivityHandler) target(ctx context.Context, link models.Link) (owner, label string, err error) {
	switch link.Kind {
	case models.LinkAccount:
		acc, err := findByID[models.Account](ctx, h.db, link.ID, "account")
		if err != nil {
			return "", "", asInvalid(err)
		}
		return "", acc.Name, nil
	case models.LinkLead:
		l, err := findByID[models.Lead](ctx, h.db, link.ID, "lead")
		if err != nil {
			return "", "", asInvalid(err)
		}
		return l.GetOwnerID(), "lead " + l.Company, nil
	case models.LinkDeal:
		d, err := findByID[models.Deal](ctx, h.db, link.ID, "deal")
		if err != nil {
			return "", "", asInvalid(err)
		}
		return d.OwnerID, "deal " + d.Name, nil
	}
	return "", "", nil
}

// asInvalid turns a missing reference into a 400.
func asInvalid(err error) error {
	if nf, ok := err.(notFoundError); ok {
		return invalid(string(nf) + " does not exist")
	}
	return err
}
